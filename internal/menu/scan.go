package menu

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/wally0302/menu/internal/domain"
	"github.com/wally0302/menu/internal/vision"
)

// maxImageBytes guards against un-resized uploads; clients are expected to
// downscale to ~1024px JPEG before sending.
const maxImageBytes = 8 << 20

var (
	ErrNoImages      = errors.New("menu: no images provided")
	ErrImageTooLarge = fmt.Errorf("menu: image exceeds %d bytes", maxImageBytes)
)

// Extractor is the slice of the vision client the scanner needs.
type Extractor interface {
	Configured() bool
	ParseMenuImage(ctx context.Context, jpeg []byte, country vision.Country) ([]vision.ExtractedItem, error)
}

// ScanResult is the outcome of a multi-image scan. FailedPages counts
// images that yielded nothing; the scan as a whole succeeds as long as at
// least one page produced items.
type ScanResult struct {
	Items       []domain.MenuItem `json:"items"`
	FailedPages int               `json:"failedPages"`
	Warning     string            `json:"warning,omitempty"`
}

// Scanner runs menu extraction over one or more photographed pages.
type Scanner struct {
	extractor Extractor
}

func NewScanner(extractor Extractor) *Scanner {
	if extractor == nil {
		panic("Extractor cannot be nil for Scanner")
	}
	return &Scanner{extractor: extractor}
}

// Configured reports whether extraction credentials are usable.
func (s *Scanner) Configured() bool {
	return s.extractor.Configured()
}

// Scan extracts dishes from every image. Pages that fail are dropped with a
// non-blocking warning; only a total failure (zero pages succeed) aborts
// the operation.
func (s *Scanner) Scan(ctx context.Context, images [][]byte, country vision.Country) (ScanResult, error) {
	if !s.extractor.Configured() {
		return ScanResult{}, vision.ErrNotConfigured
	}
	if len(images) == 0 {
		return ScanResult{}, ErrNoImages
	}
	if !country.Valid() {
		country = vision.CountryVN
	}
	for _, img := range images {
		if len(img) > maxImageBytes {
			return ScanResult{}, ErrImageTooLarge
		}
	}

	var result ScanResult
	for i, img := range images {
		extracted, err := s.extractor.ParseMenuImage(ctx, img, country)
		if err != nil {
			logrus.WithError(err).WithField("page", i+1).Warn("Menu page extraction failed")
			result.FailedPages++
			continue
		}
		result.Items = append(result.Items, vision.ToMenuItems(extracted)...)
	}

	if len(result.Items) == 0 {
		return ScanResult{}, fmt.Errorf("%w: %d page(s) attempted", errNoItems, len(images))
	}
	if result.FailedPages > 0 {
		result.Warning = fmt.Sprintf("%d of %d pages could not be analyzed", result.FailedPages, len(images))
	}
	return result, nil
}

var errNoItems = errors.New("menu: no dishes recognized in any image")

// IsTotalFailure reports whether a scan error means zero pages succeeded.
func IsTotalFailure(err error) bool {
	return errors.Is(err, errNoItems)
}

package vision

// Country selects the prompt variant for the menu's locale.
type Country string

const (
	CountryVN Country = "VN"
	CountryTW Country = "TW"
	CountryEN Country = "EN"
)

// Valid reports whether the country is one of the supported locales.
func (c Country) Valid() bool {
	switch c {
	case CountryVN, CountryTW, CountryEN:
		return true
	}
	return false
}

const promptTail = `
CRITICAL: Do NOT include any menu introduction, summary, or dish explanation. Only extract the dish names and prices.

Return ONLY the JSON array.`

func menuPrompt(country Country) string {
	switch country {
	case CountryVN:
		return `You are an expert culinary translator for Vietnamese cuisine.
Analyze the provided menu image.
Extract the dishes into a structured JSON list.
Currency is almost always VND.

For each dish, extract:
1. originalName: The Vietnamese name exactly as shown.
2. translatedName: A concise Traditional Chinese (繁體中文) translation.
3. englishName: A concise English translation.
4. price: The numeric price value. If 'k' notation is used (e.g. 50k), convert to 50000.
5. currency: Set to "VND".
` + promptTail
	case CountryEN:
		return `You are an expert culinary translator.
Analyze the provided menu image (English menu).
Extract the dishes into a structured JSON list.
Currency is likely USD (verify from context).

For each dish, extract:
1. originalName: The English name exactly as shown.
2. translatedName: A concise Traditional Chinese (繁體中文) translation.
3. englishName: The English name (cleaned up if necessary).
4. price: The numeric price value.
5. currency: Set to "USD".
` + promptTail
	default: // TW / Traditional Chinese
		return `You are an expert culinary translator.
Analyze the provided menu image (Traditional Chinese / Taiwan).
Extract the dishes into a structured JSON list.
Currency is TWD.

For each dish, extract:
1. originalName: The Chinese name exactly as shown.
2. translatedName: Keep identical to originalName.
3. englishName: A concise English translation.
4. price: The numeric price value.
5. currency: Set to "TWD".
` + promptTail
	}
}

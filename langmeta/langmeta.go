// Package langmeta provides language metadata (native names, emoji flags)
// for CLI output, plus the mapping from iOS locale identifiers to the
// language codes the Cloud Translation API expects.
package langmeta

import "strings"

// Meta describes language display metadata.
type Meta struct {
	Name string
	Flag string
}

// Registry contains canonical language metadata for the locales iOS apps
// commonly ship. Locale variants resolve via normalization and base
// fallback in Resolve().
var Registry = map[string]Meta{
	"ar":      {Name: "العربية", Flag: "🇸🇦"},
	"cs":      {Name: "Čeština", Flag: "🇨🇿"},
	"da":      {Name: "Dansk", Flag: "🇩🇰"},
	"de":      {Name: "Deutsch", Flag: "🇩🇪"},
	"el":      {Name: "Ελληνικά", Flag: "🇬🇷"},
	"en":      {Name: "English", Flag: "🇺🇸"},
	"en-GB":   {Name: "English (UK)", Flag: "🇬🇧"},
	"es":      {Name: "Español", Flag: "🇪🇸"},
	"fi":      {Name: "Suomi", Flag: "🇫🇮"},
	"fr":      {Name: "Français", Flag: "🇫🇷"},
	"he":      {Name: "עברית", Flag: "🇮🇱"},
	"hi":      {Name: "हिन्दी", Flag: "🇮🇳"},
	"hu":      {Name: "Magyar", Flag: "🇭🇺"},
	"id":      {Name: "Bahasa Indonesia", Flag: "🇮🇩"},
	"it":      {Name: "Italiano", Flag: "🇮🇹"},
	"ja":      {Name: "日本語", Flag: "🇯🇵"},
	"ko":      {Name: "한국어", Flag: "🇰🇷"},
	"nl":      {Name: "Nederlands", Flag: "🇳🇱"},
	"no":      {Name: "Norsk", Flag: "🇳🇴"},
	"pl":      {Name: "Polski", Flag: "🇵🇱"},
	"pt":      {Name: "Português", Flag: "🇵🇹"},
	"pt-BR":   {Name: "Português (Brasil)", Flag: "🇧🇷"},
	"ro":      {Name: "Română", Flag: "🇷🇴"},
	"ru":      {Name: "Русский", Flag: "🇷🇺"},
	"sv":      {Name: "Svenska", Flag: "🇸🇪"},
	"th":      {Name: "ไทย", Flag: "🇹🇭"},
	"tr":      {Name: "Türkçe", Flag: "🇹🇷"},
	"uk":      {Name: "Українська", Flag: "🇺🇦"},
	"vi":      {Name: "Tiếng Việt", Flag: "🇻🇳"},
	"zh":      {Name: "中文", Flag: "🇨🇳"},
	"zh-Hans": {Name: "简体中文", Flag: "🇨🇳"},
	"zh-Hant": {Name: "繁體中文", Flag: "🇹🇼"},
}

func canonicalize(lang string) string {
	normalized := strings.ReplaceAll(strings.TrimSpace(lang), "_", "-")
	if normalized == "" {
		return ""
	}
	parts := strings.Split(normalized, "-")
	parts[0] = strings.ToLower(parts[0])
	if len(parts) >= 2 && len(parts[1]) == 2 {
		parts[1] = strings.ToUpper(parts[1])
	}
	return strings.Join(parts, "-")
}

// Resolve returns best-effort language metadata for language codes,
// supporting variants like pt_BR, pt-BR, and locale fallbacks.
func Resolve(lang string) Meta {
	if m, ok := Registry[lang]; ok {
		return m
	}
	normalized := canonicalize(lang)
	if m, ok := Registry[normalized]; ok {
		return m
	}
	if parts := strings.SplitN(normalized, "-", 2); len(parts) == 2 {
		if m, ok := Registry[parts[0]]; ok {
			return m
		}
	}
	return Meta{Name: lang, Flag: ""}
}

// googleOverrides maps locale identifiers whose Cloud Translation code is
// not simply the bare language subtag.
var googleOverrides = map[string]string{
	"zh-Hans": "zh-CN",
	"zh-Hant": "zh-TW",
	"pt-BR":   "pt",
	"nb":      "no",
}

// GoogleCode maps an iOS locale identifier (the part of a .lproj folder
// name before the first dot) to the language code the Cloud Translation
// API accepts. Territory subtags the API does not distinguish are
// stripped.
func GoogleCode(lang string) string {
	normalized := canonicalize(lang)
	if code, ok := googleOverrides[normalized]; ok {
		return code
	}
	if parts := strings.SplitN(normalized, "-", 2); len(parts) == 2 {
		if code, ok := googleOverrides[parts[0]]; ok {
			return code
		}
		return parts[0]
	}
	return normalized
}

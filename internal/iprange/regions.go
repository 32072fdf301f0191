package iprange

import "strings"

// Continent-level regions used by probers and geo routing.
const (
	RegionAfrica       = "af"
	RegionAntarctica   = "an"
	RegionAsia         = "as"
	RegionCaribbean    = "ca"
	RegionEurope       = "eu"
	RegionNorthAmerica = "na"
	RegionOceania      = "oc"
	RegionSouthAmerica = "sa"
	RegionUnknown      = "unknown"
)

var regionByCountry = map[string]string{}

func init() {
	for region, countries := range map[string][]string{
		RegionAfrica: {
			"AO", "BF", "BI", "BJ", "BW", "CD", "CF", "CG", "CI", "CM", "CV", "DJ",
			"DZ", "EG", "EH", "ER", "ET", "GA", "GH", "GM", "GN", "GQ", "GW", "KE",
			"KM", "LR", "LS", "LY", "MA", "MG", "ML", "MR", "MU", "MW", "MZ", "NA",
			"NE", "NG", "RE", "RW", "SC", "SD", "SL", "SN", "SO", "SS", "ST", "TD",
			"TG", "TN", "TZ", "UG", "YT", "ZA", "ZM", "ZW",
		},
		RegionAntarctica: {
			"AQ", "TF",
		},
		RegionAsia: {
			"AE", "AF", "AZ", "BD", "BH", "BN", "BT", "CN", "HK", "ID", "IL", "IN",
			"IO", "IQ", "IR", "JO", "JP", "KG", "KH", "KP", "KR", "KW", "KZ", "LA",
			"LB", "LK", "MM", "MN", "MO", "MV", "MY", "NP", "OM", "PH", "PK", "PS",
			"QA", "SA", "SG", "SY", "TH", "TJ", "TL", "TM", "TR", "TW", "UZ", "VN",
			"YE",
		},
		RegionCaribbean: {
			"AG", "AI", "AW", "BB", "BL", "BM", "BQ", "BS", "BZ", "CR", "CU", "CW",
			"DM", "DO", "GD", "GP", "GT", "HN", "HT", "JM", "KN", "KY", "LC", "MF",
			"MQ", "MS", "NI", "PA", "PM", "PR", "SH", "SV", "SX", "TC", "TT", "VC",
			"VG", "VI",
		},
		RegionEurope: {
			"AD", "AL", "AM", "AT", "AX", "BA", "BE", "BG", "BY", "CH", "CY", "CZ",
			"DE", "DK", "EE", "ES", "FI", "FO", "FR", "GB", "GE", "GG", "GI", "GR",
			"HR", "HU", "IE", "IM", "IS", "IT", "JE", "LI", "LT", "LU", "LV", "MC",
			"MD", "ME", "MK", "MT", "NL", "NO", "PL", "PT", "RO", "RS", "RU", "SE",
			"SI", "SJ", "SK", "SM", "UA", "VA",
		},
		RegionNorthAmerica: {
			"CA", "GL", "MX", "US",
		},
		RegionOceania: {
			"AS", "AU", "BV", "CC", "CK", "CX", "FJ", "FM", "GS", "GU", "HM", "KI",
			"MH", "MP", "NC", "NF", "NR", "NU", "NZ", "PF", "PG", "PN", "PW", "SB",
			"TK", "TO", "TV", "UM", "VU", "WF", "WS",
		},
		RegionSouthAmerica: {
			"AR", "BO", "BR", "CL", "CO", "EC", "FK", "GF", "GY", "PE", "PY", "SR",
			"UY", "VE",
		},
	} {
		for _, c := range countries {
			regionByCountry[c] = region
		}
	}
}

// RegionFor maps an ISO 3166-1 alpha-2 country code to its region, or
// RegionUnknown.
func RegionFor(isoCode string) string {
	if r, ok := regionByCountry[strings.ToUpper(strings.TrimSpace(isoCode))]; ok {
		return r
	}
	return RegionUnknown
}

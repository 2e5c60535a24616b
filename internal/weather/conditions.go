package weather

import (
	"sort"

	"golang.org/x/exp/maps"
)

// StateUnknown is reported as the condition while no data has been fetched.
const StateUnknown = "unknown"

// conditionClasses maps Home Assistant weather conditions to Yandex condition codes.
var conditionClasses = map[string][]string{
	"sunny":           {"clear"},
	"partlycloudy":    {"partly-cloudy"},
	"cloudy":          {"cloudy", "overcast"},
	"pouring":         {"heavy-rain", "continuous-heavy-rain", "showers", "hail"},
	"rainy":           {"drizzle", "light-rain", "rain", "moderate-rain"},
	"lightning-rainy": {"thunderstorm", "thunderstorm-with-rain", "thunderstorm-with-hail"},
	"snowy-rainy":     {"wet-snow"},
	"snowy":           {"light-snow", "snow", "snow-showers"},
}

var descriptions = map[string]string{
	"clear":                  "Ясно",
	"partly-cloudy":          "Малооблачно",
	"cloudy":                 "Облачно с прояснениями",
	"overcast":               "Пасмурно",
	"heavy-rain":             "Сильный дождь",
	"continuous-heavy-rain":  "Длительный сильный дождь",
	"showers":                "Ливень",
	"hail":                   "Град",
	"drizzle":                "Морось",
	"light-rain":             "Небольшой дождь",
	"rain":                   "Дождь",
	"moderate-rain":          "Умеренно сильный дождь",
	"thunderstorm":           "Гроза",
	"thunderstorm-with-rain": "Дождь с грозой",
	"thunderstorm-with-hail": "Гроза с градом",
	"wet-snow":               "Дождь со снегом",
	"snow":                   "Снег",
	"snow-showers":           "Снегопад",
	"light-snow":             "Небольшой снег",
}

var codeToCondition = func() map[string]string {
	m := make(map[string]string)
	for condition, codes := range conditionClasses {
		for _, code := range codes {
			m[code] = condition
		}
	}
	return m
}()

// ConditionFor returns the Home Assistant condition for a Yandex code.
func ConditionFor(code string) (string, bool) {
	condition, ok := codeToCondition[code]
	return condition, ok
}

// Describe returns the human readable (Russian) text for a Yandex code, or
// an empty string for unknown codes.
func Describe(code string) string {
	return descriptions[code]
}

// Conditions lists every condition the entity can report, sorted.
func Conditions() []string {
	keys := maps.Keys(conditionClasses)
	sort.Strings(keys)
	return keys
}

// Codes lists every Yandex code known to the table, sorted.
func Codes() []string {
	keys := maps.Keys(codeToCondition)
	sort.Strings(keys)
	return keys
}

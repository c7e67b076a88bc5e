package app

import (
	"strconv"

	"kursbot/internal/rates"
)

// Bot-level UI strings. Rate rendering has its own translations in the
// rates package; this map only covers command replies.
var uiStrings = map[string]map[string]string{
	"en": {
		"welcome_title": "Welcome!",
		"welcome_body":  "You are subscribed to the daily exchange rate digest. Use /rates for current rates and /lang to change language.",
		"subscribed":    "Daily digest enabled.",
		"unsubscribed":  "Daily digest paused. Use /subscribe to resume.",
		"choose_lang":   "Choose your language:",
		"lang_set":      "Language updated",
	},
	"ru": {
		"welcome_title": "Добро пожаловать!",
		"welcome_body":  "Вы подписаны на ежедневную рассылку курсов валют. /rates — текущие курсы, /lang — смена языка.",
		"subscribed":    "Ежедневная рассылка включена.",
		"unsubscribed":  "Рассылка приостановлена. /subscribe — возобновить.",
		"choose_lang":   "Выберите язык:",
		"lang_set":      "Язык изменён",
	},
	"uz_cy": {
		"welcome_title": "Хуш келибсиз!",
		"welcome_body":  "Сиз кунлик валюта курслари хабарномасига обуна бўлдингиз. /rates — жорий курслар, /lang — тилни ўзгартириш.",
		"subscribed":    "Кунлик хабарнома ёқилди.",
		"unsubscribed":  "Хабарнома тўхтатилди. /subscribe — қайта ёқиш.",
		"choose_lang":   "Тилни танланг:",
		"lang_set":      "Тил ўзгартирилди",
	},
}

func t(locale, key string) string {
	if m, ok := uiStrings[locale]; ok {
		if s, ok := m[key]; ok {
			return s
		}
	}
	if s, ok := uiStrings[rates.DefaultLocale][key]; ok {
		return s
	}
	return key
}

func itoa(v int) string { return strconv.Itoa(v) }

package telegrambot

import "strings"

// Vars holds {placeholder} substitutions for a translated message.
type Vars map[string]string

// messages is the full bot copy in both supported locales. Unknown locales
// fall back to Azerbaijani, unknown keys echo the key.
var messages = map[string]map[string]string{
	"az": {
		"cmd_start":     "Başla",
		"cmd_subscribe": "Abunə ol (sürətli seçim)",
		"cmd_list":      "Abunələri göstər",
		"cmd_manage":    "Abunələri idarə et",
		"cmd_topics":    "Rəsmi bölmələrdən seç",
		"cmd_lang":      "Dili dəyiş",
		"cmd_help":      "Kömək",

		"welcome":         "Salam! Yeni hüquqi aktlar barədə bildirişlər üçün hazıram.",
		"choose_sub_type": "Abunə növünü seçin:",
		"subs_none":       "Abunə yoxdur.",
		"subs_title":      "Abunələriniz:",
		"topics_choose":   "Rəsmi bölmələrdən seçin:",
		"topics_none":     "Bölmələr tapılmadı.",
		"prompt_keyword":  "Açar sözü yazın (məs.: \"vergi\")",

		"sub_added_all":      "✅ Hamısı üçün abunə aktivdir.",
		"sub_exists_all":     "ℹ️ Artıq \"Hamısı\" üçün abunəsiniz.",
		"sub_added_cat":      "✅ {cat} üçün abunə aktivdir.",
		"sub_exists_cat":     "ℹ️ {cat} üçün artıq abunəsiniz.",
		"sub_added_keyword":  "✅ Açar sözü üçün abunə aktivdir: “{term}”",
		"sub_exists_keyword": "ℹ️ Bu açar söz üçün artıq abunəsiniz: “{term}”",
		"sub_invalid":        "⚠️ Bu sorğu qəbul edilmədi.",
		"unsub_deleted_cb":   "Silindi",
		"unsub_deleted_text": "✅ Silindi. /manage yazıb yeniləyə bilərsiniz.",

		"lang_choose": "Dil seçin:",
		"lang_set_az": "✅ Dil: AZ",
		"lang_set_en": "✅ Dil: EN",

		"sync_admin_only": "⛔️ Yalnız admin /sync işlədə bilər.",
		"sync_starting":   "⏳ Sync başladı…",
		"sync_done":       "✅ Sync bitdi: {created} yeni, {updated} yeniləndi. MaxID={maxId}",

		"help_lines": "Əmrlər:\n" +
			"/subscribe – sürətli seçim menyusu\n" +
			"/list – abunələri göstər\n" +
			"/manage – abunələri idarə et (sil)\n" +
			"/topics – rəsmi bölmələrdən seç\n" +
			"/lang – dili dəyiş",
	},
	"en": {
		"cmd_start":     "Start",
		"cmd_subscribe": "Subscribe (quick menu)",
		"cmd_list":      "List subscriptions",
		"cmd_manage":    "Manage subscriptions",
		"cmd_topics":    "Choose from official sections",
		"cmd_lang":      "Change language",
		"cmd_help":      "Help",

		"welcome":         "Hello! I am ready to notify you about new legal acts.",
		"choose_sub_type": "Select a subscription type:",
		"subs_none":       "No subscriptions.",
		"subs_title":      "Your subscriptions:",
		"topics_choose":   "Choose from official sections:",
		"topics_none":     "No sections found.",
		"prompt_keyword":  "Enter a keyword (e.g. \"tax\")",

		"sub_added_all":      "✅ Subscribed to ALL.",
		"sub_exists_all":     "ℹ️ Already subscribed to ALL.",
		"sub_added_cat":      "✅ Subscribed to {cat}.",
		"sub_exists_cat":     "ℹ️ Already subscribed to {cat}.",
		"sub_added_keyword":  "✅ Subscribed to keyword: “{term}”",
		"sub_exists_keyword": "ℹ️ Already subscribed to keyword: “{term}”",
		"sub_invalid":        "⚠️ That query was not accepted.",
		"unsub_deleted_cb":   "Deleted",
		"unsub_deleted_text": "✅ Deleted. You can refresh with /manage.",

		"lang_choose": "Choose language:",
		"lang_set_az": "✅ Language: AZ",
		"lang_set_en": "✅ Language: EN",

		"sync_admin_only": "⛔️ Only admin can run /sync.",
		"sync_starting":   "⏳ Sync started…",
		"sync_done":       "✅ Sync finished: {created} new, {updated} updated. MaxID={maxId}",

		"help_lines": "Commands:\n" +
			"/subscribe – quick menu\n" +
			"/list – list subscriptions\n" +
			"/manage – manage (delete) subscriptions\n" +
			"/topics – choose from official sections\n" +
			"/lang – change language",
	},
}

// T translates key into the given locale, substituting {name} placeholders
// from vars.
func T(locale, key string, vars Vars) string {
	lang := "az"
	if locale == "en" {
		lang = "en"
	}

	msg, ok := messages[lang][key]
	if !ok {
		return key
	}
	for name, value := range vars {
		msg = strings.ReplaceAll(msg, "{"+name+"}", value)
	}
	return msg
}

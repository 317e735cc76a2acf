package eqanun

import (
	"fmt"
	"strings"
	"time"

	"github.com/qanunbot/eqanun-notifier/internal/domain"
)

// NormalizeCategory maps a source typeName to a normalized act category.
// Matching is by substring so that both the diacritic and the ASCII
// transliteration of a term are recognized.
func NormalizeCategory(typeName string) domain.ActCategory {
	t := strings.ToLower(typeName)
	switch {
	case strings.Contains(t, "qanunu"):
		return domain.CategoryLaw
	case strings.Contains(t, "fərman"), strings.Contains(t, "ferman"):
		return domain.CategoryDecree
	case strings.Contains(t, "sərəncam"), strings.Contains(t, "serencam"):
		return domain.CategoryDecision
	default:
		return domain.CategoryOther
	}
}

// ItemToRawAct maps a source item to an ingestion candidate. classCode (ISO
// date) is preferred over acceptDate (dd.MM.yyyy); an unparseable date is
// dropped rather than failing the item.
func ItemToRawAct(item Item) domain.RawAct {
	return domain.RawAct{
		ExternalID:    item.ID,
		Title:         item.Title,
		Category:      NormalizeCategory(item.TypeName),
		URL:           fmt.Sprintf("https://e-qanun.az/framework/%d", item.ID),
		PublishedDate: parsePublishedDate(item),
	}
}

func parsePublishedDate(item Item) *time.Time {
	if item.ClassCode != nil && *item.ClassCode != "" {
		if d, err := time.Parse("2006-01-02", *item.ClassCode); err == nil {
			return &d
		}
	}
	if item.AcceptDate != nil && *item.AcceptDate != "" {
		if d, err := time.Parse("02.01.2006", *item.AcceptDate); err == nil {
			return &d
		}
	}
	return nil
}

package service

import (
	"math/rand"
	"strings"

	"github.com/ferreiralabs/zapcrm-backend/internal/model"
)

// automationMarker is a zero-width prefix distinguishing automated sends from
// operator-typed messages downstream.
const automationMarker = "‌"

// renderMessage substitutes recipient placeholders into a template and tags
// the result with the automation marker.
func renderMessage(template string, item model.ContactListItem) string {
	msg := template
	msg = strings.ReplaceAll(msg, "{nome}", item.Name)
	msg = strings.ReplaceAll(msg, "{email}", item.Email)
	msg = strings.ReplaceAll(msg, "{numero}", item.Number)
	return automationMarker + msg
}

// pickVariant selects one of the configured message variants uniformly at
// random. intn supplies the randomness so tests can pin it.
func pickVariant(variants []string, intn func(int) int) string {
	if len(variants) == 0 {
		return ""
	}
	if intn == nil {
		intn = rand.Intn
	}
	return variants[intn(len(variants))]
}

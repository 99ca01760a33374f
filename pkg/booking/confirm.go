package booking

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"courtbot/pkg/log"
	"courtbot/pkg/surface"
	"go.uber.org/zap"
)

// words that make a dialog button a dismissal even when it also reads affirmative ("Book later")
var dismissWords = []string{"cancel", "close", "back", "dismiss", "later", "no"}

// confirm looks for the confirmation control in order: configured labels, the primary button
// of an open dialog, then any dialog button carrying an affirmative word. It reports false
// when nothing was clicked.
func (o *Orchestrator) confirm(ctx context.Context, session surface.Session) (bool, error) {
	for _, label := range o.config.ConfirmLabels {
		ref, found, err := session.FindVisibleButtonByText(ctx, label)
		if err != nil {
			if errors.Is(err, surface.ErrSessionClosed) {
				return false, newError(KindSession, "find confirmation", err)
			}
			log.L().Debug("confirm_lookup_failed", zap.String("label", label), zap.Error(err))
			continue
		}
		if !found {
			continue
		}
		return o.clickConfirmation(ctx, session, ref, "label", label)
	}

	buttons, err := session.ListButtonsInOpenDialog(ctx)
	if err != nil {
		if errors.Is(err, surface.ErrSessionClosed) {
			return false, newError(KindSession, "list dialog buttons", err)
		}
		log.L().Warn("confirm_dialog_scan_failed", zap.Error(err))
		return false, nil
	}
	for _, button := range buttons {
		if button.Primary && !containsWord(button.Text, dismissWords) {
			return o.clickConfirmation(ctx, session, button.Ref, "primary", button.Text)
		}
	}
	for _, button := range buttons {
		if containsWord(button.Text, dismissWords) {
			continue
		}
		if containsWord(button.Text, o.config.AffirmativeWords) {
			return o.clickConfirmation(ctx, session, button.Ref, "affirmative", button.Text)
		}
	}
	log.L().Warn("confirm_not_found", zap.Int("dialog_buttons", len(buttons)))
	return false, nil
}

func (o *Orchestrator) clickConfirmation(ctx context.Context, session surface.Session, ref, via, text string) (bool, error) {
	if err := session.Click(ctx, ref); err != nil {
		return false, surfaceError(KindAction, "click confirmation", err)
	}
	log.L().Info("confirm_clicked", zap.String("via", via), zap.String("text", text))
	return true, nil
}

func containsWord(text string, words []string) bool {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, field := range fields {
		for _, word := range words {
			if field == strings.ToLower(word) {
				return true
			}
		}
	}
	return false
}

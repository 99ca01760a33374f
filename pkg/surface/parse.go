package surface

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	labelAttributes = []string{"aria-label", "title", "data-label"}
	hrefAttributes  = []string{"href", "data-href", "data-url", "data-start"}
)

func parseSlotCandidates(document *goquery.Document, selectors Selectors) []SlotCandidate {
	var candidates []SlotCandidate
	document.Find(refPrefixQuery(slotRefPrefixLiteral)).Each(func(_ int, element *goquery.Selection) {
		parent := parentOf(element, selectors.SlotParent)
		ref, _ := element.Attr(refAttributeLiteral)
		candidates = append(candidates, SlotCandidate{
			Ref:         ref,
			Label:       firstAttribute(element, labelAttributes),
			Href:        firstAttribute(element, hrefAttributes),
			ParentLabel: firstAttribute(parent, labelAttributes),
			ParentTime:  compactTime(parent, selectors.SlotTime),
			ParentHref:  firstAttribute(parent, hrefAttributes),
			Text:        visibleText(element),
			Attributes:  attributeMap(element),
		})
	})
	return candidates
}

func parseUnavailableIndicators(document *goquery.Document, selectors Selectors) []UnavailableIndicator {
	var indicators []UnavailableIndicator
	document.Find(refPrefixQuery(unavailableRefPrefix)).Each(func(_ int, element *goquery.Selection) {
		parent := parentOf(element, selectors.SlotParent)
		ownTime := compactTime(element, selectors.SlotTime)
		if ownTime == "" {
			ownTime = visibleText(element)
		}
		indicators = append(indicators, UnavailableIndicator{
			Time:        ownTime,
			Label:       firstAttribute(element, labelAttributes),
			Href:        firstAttribute(element, hrefAttributes),
			ParentLabel: firstAttribute(parent, labelAttributes),
			ParentTime:  compactTime(parent, selectors.SlotTime),
		})
	})
	return indicators
}

func parseDialogButtons(document *goquery.Document) []Button {
	var buttons []Button
	document.Find(refPrefixQuery(dialogRefPrefixLiteral)).Each(func(_ int, element *goquery.Selection) {
		ref, _ := element.Attr(refAttributeLiteral)
		text := visibleText(element)
		if text == "" {
			text, _ = element.Attr("value")
		}
		if text == "" {
			text = firstAttribute(element, labelAttributes)
		}
		classes, _ := element.Attr("class")
		buttonType, _ := element.Attr("type")
		buttons = append(buttons, Button{
			Ref:     ref,
			Text:    strings.TrimSpace(text),
			Primary: strings.Contains(strings.ToLower(classes), "primary") || strings.EqualFold(buttonType, "submit"),
		})
	})
	return buttons
}

func refPrefixQuery(prefix string) string {
	return `[` + refAttributeLiteral + `^="` + prefix + `-"]`
}

func parentOf(element *goquery.Selection, parentSelector string) *goquery.Selection {
	if parentSelector == "" {
		return element.Parent()
	}
	if closest := element.Parent().Closest(parentSelector); closest.Length() > 0 {
		return closest
	}
	return element.Parent()
}

// compactTime reads the short "9:00 PM" text a container shows for its start time.
func compactTime(container *goquery.Selection, timeSelector string) string {
	if timeSelector == "" || container.Length() == 0 {
		return ""
	}
	return collapse(container.Find(timeSelector).First().Text())
}

func firstAttribute(element *goquery.Selection, names []string) string {
	for _, name := range names {
		if value, ok := element.Attr(name); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func visibleText(element *goquery.Selection) string {
	return collapse(element.Text())
}

func attributeMap(element *goquery.Selection) map[string]string {
	if element.Length() == 0 {
		return nil
	}
	attributes := map[string]string{}
	for _, attribute := range element.Nodes[0].Attr {
		attributes[attribute.Key] = attribute.Val
	}
	return attributes
}

func collapse(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

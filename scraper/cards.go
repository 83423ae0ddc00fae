package scraper

import (
	"fmt"
	"regexp"
	"strings"

	"newbuild_scrooper/document"
	"newbuild_scrooper/fields"
	"newbuild_scrooper/identity"
	"newbuild_scrooper/models"
)

const (
	cardSelector         = `[data-name="LinkArea"]`
	cardFallbackSelector = `article[data-name="CardComponent"]`
	cardLinkSelector     = `a[href*="/flat/"]`
	cardLinkFallback     = `a[href*="sale/flat"]`
	cardTextSelector     = `[data-name="LinkArea"]`
	cardPriceSelector    = `[data-mark="MainPrice"]`
	cardAddressSelector  = `[data-name="AddressItem"]`
)

var flatIDRegex = regexp.MustCompile(`/flat/(\d+)`)

// RejectReason says why a card did not become a unit. Empty means accepted.
type RejectReason string

const (
	RejectNoID       RejectReason = "no_id"
	RejectForeign    RejectReason = "foreign_development"
	RejectZeroArea   RejectReason = "zero_area"
	RejectZeroPrice  RejectReason = "zero_price"
	RejectUnreadable RejectReason = "unreadable"
)

// CardOutcome is the result of reading one listing card.
type CardOutcome struct {
	Unit   models.UnitCandidate
	Reason RejectReason
	Err    error // set for RejectUnreadable
}

func (o CardOutcome) Accepted() bool {
	return o.Reason == ""
}

func rejected(reason RejectReason) CardOutcome {
	return CardOutcome{Reason: reason}
}

// CardExtractor reads listing cards that belong to one development.
type CardExtractor struct {
	DevelopmentID string
	BaseURL       string
}

// ExtractPage returns one outcome per visible card on the current page.
func (x CardExtractor) ExtractPage(doc document.Document) ([]CardOutcome, error) {
	html, err := doc.Content()
	if err != nil {
		return nil, fmt.Errorf("read page content: %w", err)
	}
	allowed := identity.Filter(identity.ParentPairs(html), x.DevelopmentID)

	cards, err := doc.FindAll(cardSelector)
	if err != nil {
		return nil, err
	}
	if len(cards) == 0 {
		if cards, err = doc.FindAll(cardFallbackSelector); err != nil {
			return nil, err
		}
	}

	outcomes := make([]CardOutcome, 0, len(cards))
	for _, card := range cards {
		if !card.IsVisible() {
			continue
		}
		outcomes = append(outcomes, x.readCard(card, allowed))
	}
	return outcomes, nil
}

func (x CardExtractor) readCard(card document.Element, allowed identity.Set) CardOutcome {
	unreadable := func(err error) CardOutcome {
		return CardOutcome{Reason: RejectUnreadable, Err: err}
	}

	url, err := x.cardURL(card)
	if err != nil {
		return unreadable(err)
	}
	m := flatIDRegex.FindStringSubmatch(url)
	if m == nil {
		return rejected(RejectNoID)
	}
	id := m[1]
	if !allowed.Allows(id) {
		return rejected(RejectForeign)
	}

	textEl, ok, err := card.Query(cardTextSelector)
	if err != nil {
		return unreadable(err)
	}
	if !ok {
		textEl = card
	}
	text, err := textEl.Text()
	if err != nil {
		return unreadable(err)
	}

	priceText, err := childText(card, cardPriceSelector)
	if err != nil {
		return unreadable(err)
	}
	addressText, err := childText(card, cardAddressSelector)
	if err != nil {
		return unreadable(err)
	}

	floor, floorsTotal := fields.FloorPair(text)
	c := models.UnitCandidate{
		Source:      models.SourceCard,
		ID:          id,
		URL:         url,
		Rooms:       fields.Rooms(text),
		Area:        fields.CardArea(text),
		Floor:       floor,
		FloorsTotal: floorsTotal,
		Price:       fields.Price(text, priceText),
		Address:     strPtr(addressText),
		Status:      cardStatus(text),
	}

	switch {
	case c.Area <= 0:
		return rejected(RejectZeroArea)
	case c.Price <= 0:
		return rejected(RejectZeroPrice)
	}
	return CardOutcome{Unit: c}
}

func (x CardExtractor) cardURL(card document.Element) (string, error) {
	link, ok, err := document.QueryFirst(card, cardLinkSelector, cardLinkFallback)
	if err != nil || !ok {
		return "", err
	}
	href, _, err := link.Attribute("href")
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(href, "/") {
		href = strings.TrimSuffix(x.BaseURL, "/") + href
	}
	return href, nil
}

func childText(el document.Element, selector string) (string, error) {
	child, ok, err := el.Query(selector)
	if err != nil || !ok {
		return "", err
	}
	text, err := child.Text()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// cardStatus looks for the house status keywords in the card text.
func cardStatus(text string) *string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "дом сдан"):
		s := fields.StatusCompleted
		return &s
	case strings.Contains(lower, "строится"):
		s := fields.StatusBuilding
		return &s
	}
	return nil
}

// Package section implements SectionLocator: given a change record and the
// parsed "after" document, it identifies the nearest semantic container the
// change belongs to and assigns a confidence score. Resolution is a fixed
// ordered list of strategies — functions of a single shape, no inheritance —
// where the first non-null result wins, per the per-target design note on
// polymorphic identification strategies.
package section

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/RamfiAogusto/competitor-tracker/internal/domain"
)

// Located is the result of a successful resolution.
type Located struct {
	Selector    string
	SectionType domain.SectionType
	Confidence  float64
}

// directSemanticTag maps HTML5 semantic elements to the section type they imply
// directly; section/article/aside/main carry no direct type but still earn
// the "semantic tag" bonus when corroborating another signal.
var directSemanticTag = map[string]domain.SectionType{
	"header": domain.SectionHeader,
	"nav":    domain.SectionNavigation,
	"footer": domain.SectionFooter,
}

var bonusSemanticTag = map[string]bool{
	"section": true, "article": true, "aside": true, "main": true,
}

// keywordTable maps a section type to the id/class/heading tokens (English
// and Spanish) that identify it.
var keywordTable = map[domain.SectionType][]string{
	domain.SectionHero:        {"hero", "banner", "jumbotron", "portada"},
	domain.SectionPricing:     {"pricing", "price", "plans", "precio", "precios", "tarifa", "tarifas"},
	domain.SectionFeatures:    {"features", "feature", "caracteristicas", "características", "funciones"},
	domain.SectionNavigation:  {"nav", "navbar", "menu", "navegacion", "navegación"},
	domain.SectionHeader:      {"header", "topbar", "cabecera", "encabezado"},
	domain.SectionFooter:      {"footer", "pie", "piedepagina", "pie-de-pagina"},
	domain.SectionTestimonials: {"testimonials", "testimonial", "reviews", "opiniones", "testimonios", "resenas", "reseñas"},
	domain.SectionCTA:          {"cta", "call-to-action", "llamada-a-la-accion"},
	domain.SectionForm:         {"form", "signup", "contact-form", "formulario", "contacto"},
	domain.SectionAbout:        {"about", "about-us", "nosotros", "acerca-de", "quienes-somos", "quiénes-somos"},
	domain.SectionTeam:         {"team", "equipo", "staff"},
}

var ctaWords = []string{
	"get started", "sign up", "sign-up", "try now", "try free", "buy now",
	"subscribe", "join now", "join free", "start free trial", "book a demo",
	"comenzar", "empieza", "empezar", "suscribete", "suscríbete", "comprar ahora",
}

var currencyPattern = regexp.MustCompile(`[$€£¥]\s?\d`)

// ancestor is a normalized view of one DOM ancestor, usable whether it came
// from a real node in the after document or was reconstructed from a
// ChangeRecord's path hint (the common case for removed content, which no
// longer exists in the after document to walk).
type ancestor struct {
	tag         string
	id          string
	classes     []string
	dataSection string
	headingText string
	node        *html.Node // present only when resolved against the live after-DOM
}

// Locate resolves a single change record against the after document.
func Locate(record domain.ChangeRecord, after *goquery.Document) Located {
	ancestors := ancestorsForRecord(record, after)

	if m, ok := byExplicitAttr(ancestors); ok {
		return finalize(m, record, ancestors)
	}
	if m, ok := bySemanticTag(ancestors); ok {
		return finalize(m, record, ancestors)
	}
	if m, ok := byHeadingKeyword(ancestors); ok {
		return finalize(m, record, ancestors)
	}
	if m, ok := byContentHeuristic(record); ok {
		return finalize(m, record, ancestors)
	}
	if m, ok := byStructuralPattern(ancestors); ok {
		return finalize(m, record, ancestors)
	}

	return Located{SectionType: domain.SectionContent, Confidence: 0.3}
}

// finalize applies the semantic-tag corroboration bonus and the
// content-heuristic corroboration bonus, then clamps to [0,1], and builds
// a CSS-style selector for the winning ancestor.
func finalize(m Located, record domain.ChangeRecord, ancestors []ancestor) Located {
	if hasSemanticBonus(ancestors) {
		m.Confidence += 0.10
	}
	if _, agrees := byContentHeuristic(record); agrees && m.SectionType != domain.SectionContent {
		m.Confidence += 0.15
	}
	if m.Confidence > 1 {
		m.Confidence = 1
	}
	if m.Selector == "" {
		m.Selector = selectorFor(ancestors, m.SectionType)
	}
	return m
}

// byExplicitAttr is strategy 1: an id/class/data-section token matching a
// known section type, narrowest ancestor first.
func byExplicitAttr(ancestors []ancestor) (Located, bool) {
	for _, a := range ancestors {
		if t, ok := matchKeyword(a.dataSection); ok {
			return Located{SectionType: t, Confidence: 0.95, Selector: selectorForAncestor(a)}, true
		}
		if t, ok := matchKeyword(a.id); ok {
			return Located{SectionType: t, Confidence: 0.95, Selector: selectorForAncestor(a)}, true
		}
		for _, c := range a.classes {
			if t, ok := matchKeyword(c); ok {
				return Located{SectionType: t, Confidence: 0.75, Selector: selectorForAncestor(a)}, true
			}
		}
	}
	return Located{}, false
}

// bySemanticTag is strategy 2: a semantic HTML5 element with a direct
// type mapping (header/nav/footer).
func bySemanticTag(ancestors []ancestor) (Located, bool) {
	for _, a := range ancestors {
		if t, ok := directSemanticTag[a.tag]; ok {
			return Located{SectionType: t, Confidence: 0.6, Selector: selectorForAncestor(a)}, true
		}
	}
	return Located{}, false
}

// byHeadingKeyword is strategy 3: an ancestor containing a heading whose
// text matches a multilingual keyword.
func byHeadingKeyword(ancestors []ancestor) (Located, bool) {
	for _, a := range ancestors {
		if a.headingText == "" {
			continue
		}
		if t, ok := matchKeyword(a.headingText); ok {
			return Located{SectionType: t, Confidence: 0.65, Selector: selectorForAncestor(a)}, true
		}
	}
	return Located{}, false
}

// byContentHeuristic is strategy 4: heuristic content match on the
// record's own text (currency, form-ish tokens, quoted testimonial-like
// text, imperative CTA words).
func byContentHeuristic(record domain.ChangeRecord) (Located, bool) {
	v := strings.ToLower(record.Value)
	switch {
	case currencyPattern.MatchString(record.Value):
		return Located{SectionType: domain.SectionPricing, Confidence: 0.5}, true
	case isQuotedShortText(record.Value):
		return Located{SectionType: domain.SectionTestimonials, Confidence: 0.5}, true
	case containsAny(v, ctaWords):
		return Located{SectionType: domain.SectionCTA, Confidence: 0.5}, true
	}
	return Located{}, false
}

// byStructuralPattern is strategy 5: structural patterns visible only in
// the live DOM, e.g. three-or-more sibling elements sharing a price class.
func byStructuralPattern(ancestors []ancestor) (Located, bool) {
	for _, a := range ancestors {
		if a.node == nil || a.node.Parent == nil {
			continue
		}
		parent := goquery.NewDocumentFromNode(a.node.Parent)
		if parent.Find(".price").Length() >= 3 {
			return Located{SectionType: domain.SectionPricing, Confidence: 0.7, Selector: selectorForAncestor(a)}, true
		}
	}
	return Located{}, false
}

func hasSemanticBonus(ancestors []ancestor) bool {
	for _, a := range ancestors {
		if bonusSemanticTag[a.tag] || directSemanticTag[a.tag] != "" {
			return true
		}
	}
	return false
}

func matchKeyword(s string) (domain.SectionType, bool) {
	if s == "" {
		return "", false
	}
	low := strings.ToLower(s)
	for t, words := range keywordTable {
		for _, w := range words {
			if strings.Contains(low, w) {
				return t, true
			}
		}
	}
	return "", false
}

func containsAny(s string, candidates []string) bool {
	for _, c := range candidates {
		if strings.Contains(s, c) {
			return true
		}
	}
	return false
}

func isQuotedShortText(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) == 0 || len(s) > 200 {
		return false
	}
	quoted := (strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`)) ||
		strings.HasPrefix(s, "“") || strings.HasPrefix(s, "'")
	return quoted && len(strings.Fields(s)) <= 30
}

func selectorForAncestor(a ancestor) string {
	if a.id != "" {
		return a.tag + "#" + a.id
	}
	if len(a.classes) > 0 {
		return a.tag + "." + strings.Join(a.classes, ".")
	}
	return a.tag
}

func selectorFor(ancestors []ancestor, _ domain.SectionType) string {
	if len(ancestors) > 0 {
		return selectorForAncestor(ancestors[0])
	}
	return "body"
}

// ancestorsForRecord builds the narrowest-first ancestor chain for a
// record. When the record's text can still be found verbatim in the
// after document (always true for additions, sometimes true for
// removals whose surrounding container is unchanged), the chain is
// built by walking real DOM nodes. Otherwise it is reconstructed from
// the diff-time path hint, which loses heading text and data-section
// attributes but keeps tag/id/class identity.
func ancestorsForRecord(record domain.ChangeRecord, after *goquery.Document) []ancestor {
	if after != nil {
		if node := findTextNode(after.Nodes[0], record.Value); node != nil {
			return realAncestors(node)
		}
	}
	return syntheticAncestors(record.PathHint)
}

func findTextNode(root *html.Node, value string) *html.Node {
	if value == "" {
		return nil
	}
	var found *html.Node
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.TextNode && normalizeWS(n.Data) == value {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
			if found != nil {
				return
			}
		}
	}
	visit(root)
	return found
}

func realAncestors(textNode *html.Node) []ancestor {
	var out []ancestor
	for n := textNode.Parent; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		out = append(out, ancestorFromNode(n))
	}
	return out
}

func ancestorFromNode(n *html.Node) ancestor {
	a := ancestor{tag: n.Data, node: n}
	for _, attr := range n.Attr {
		switch attr.Key {
		case "id":
			a.id = attr.Val
		case "class":
			a.classes = strings.Fields(attr.Val)
		case "data-section":
			a.dataSection = attr.Val
		}
	}
	a.headingText = shallowHeadingText(n)
	return a
}

// shallowHeadingText returns the text of the first heading found at most
// two levels below n, avoiding descending into unrelated subsections.
func shallowHeadingText(n *html.Node) string {
	var text string
	var depth func(node *html.Node, d int)
	depth = func(node *html.Node, d int) {
		if text != "" || d > 2 {
			return
		}
		if node.Type == html.ElementNode && isHeading(node.Data) {
			text = normalizeWS(collectText(node))
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			depth(c, d+1)
			if text != "" {
				return
			}
		}
	}
	depth(n, 0)
	return text
}

func isHeading(tag string) bool {
	switch tag {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return true
	}
	return false
}

func collectText(n *html.Node) string {
	var sb strings.Builder
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return sb.String()
}

func normalizeWS(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// syntheticAncestors rebuilds an approximate ancestor chain from a
// "tag#id"/"tag.class1.class2"/"tag" path hint string, innermost first.
func syntheticAncestors(pathHint string) []ancestor {
	if pathHint == "" {
		return nil
	}
	tokens := strings.Split(pathHint, ">")
	out := make([]ancestor, 0, len(tokens))
	for i := len(tokens) - 1; i >= 0; i-- {
		out = append(out, parseToken(tokens[i]))
	}
	return out
}

func parseToken(tok string) ancestor {
	switch {
	case strings.Contains(tok, "#"):
		parts := strings.SplitN(tok, "#", 2)
		return ancestor{tag: parts[0], id: parts[1]}
	case strings.Contains(tok, "."):
		parts := strings.SplitN(tok, ".", 2)
		return ancestor{tag: parts[0], classes: strings.Split(parts[1], ".")}
	default:
		return ancestor{tag: tok}
	}
}

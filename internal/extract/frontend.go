package extract

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/DeusData/callpath-mapper/internal/lang"
)

const quoteClass = `['"` + "`" + `]`
const notQuote = `[^'"` + "`" + `]`

// regex patterns for UI source (TypeScript / JavaScript)
var (
	// export class OrderScreenComponent, export default abstract class Base
	tsExportClassRe = regexp.MustCompile(`export\s+(?:default\s+)?(?:abstract\s+)?class\s+([A-Za-z_$][\w$]*)`)
	tsClassRe       = regexp.MustCompile(`\bclass\s+([A-Za-z_$][\w$]*)`)

	// Angular decorators that make a file an entity even without a class name
	tsDecoratorRe = regexp.MustCompile(`@(Component|Injectable|Directive|Pipe|NgModule)\s*\(`)

	tsCtorRe      = regexp.MustCompile(`\bconstructor\s*\(`)
	tsCtorParamRe = regexp.MustCompile(`^(?:@\w+\s*\([^)]*\)\s*)*(?:(?:private|public|protected|readonly|override)\s+)*([A-Za-z_$][\w$]*)\s*\??\s*:\s*([A-Za-z_$][\w$.]*)`)

	// private orders = inject(OrderService); const api: Api = inject(Api)
	tsInjectRe = regexp.MustCompile(`([A-Za-z_$][\w$]*)\s*(?::\s*[\w$.<>\[\]]+\s*)?=\s*inject\s*(?:<[^()]*?>)?\s*\(\s*([A-Za-z_$][\w$.]*)`)

	// name(params): ReturnType {
	tsOperationRe = regexp.MustCompile(`([A-Za-z_$][\w$]*)\s*(?:<[^()]*?>)?\s*\(((?:[^()]|\([^()]*\))*)\)\s*(?::\s*([^{};=]+?))?\s*\{`)

	// this.http.get<Order[]>('/api/orders'), this.api.post(`/orders/${id}`)
	tsMemberHTTPRe = regexp.MustCompile(`this\.([A-Za-z_$][\w$]*)\.((?i:get|post|put|delete|patch|head|options))\s*(?:<[^()]*?>)?\s*\(\s*` + quoteClass + `(` + notQuote + `+)` + quoteClass)

	// http.get('/x'), axios.post("/y") on a bare client accessor
	tsClientHTTPRe = regexp.MustCompile(`(?:^|[^\w$.])((?:http|httpClient|axios|\$http)\.((?i:get|post|put|delete|patch|head|options)))\s*(?:<[^()]*?>)?\s*\(\s*` + quoteClass + `(` + notQuote + `+)` + quoteClass)

	// this.orderService.submit(
	tsInvokeRe = regexp.MustCompile(`this\.([A-Za-z_$][\w$]*)\.([A-Za-z_$][\w$]*)\s*(?:<[^()]*?>)?\s*\(`)
)

// Frontend extracts a UI entity from TypeScript/JavaScript source. It returns
// nil when the text declares no class, carries no Angular decorator and the
// file name does not look like a component or service.
func Frontend(path, content string) *Entity {
	src := maskComments(content)

	name := ""
	if m := tsExportClassRe.FindStringSubmatch(src); m != nil {
		name = m[1]
	} else if m := tsClassRe.FindStringSubmatch(src); m != nil {
		name = m[1]
	}
	if name == "" {
		if !tsDecoratorRe.MatchString(src) && !looksLikeUIUnit(path) {
			return nil
		}
		name = nameFromFile(path)
	}

	e := &Entity{
		Name:     name,
		Kind:     KindService,
		Layer:    lang.Frontend,
		FilePath: path,
	}
	if strings.Contains(src, "@Component") {
		e.Kind = KindComponent
	}

	lines := newLineIndex(src)
	aliases := extractTSDependencies(e, src, lines)
	spans := extractTSOperations(e, src, lines)
	callSites := extractTSNetworkCalls(e, src, lines, spans)
	extractTSInvocations(e, src, lines, spans, aliases, callSites)
	return e
}

func looksLikeUIUnit(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	return strings.Contains(base, ".component.") || strings.Contains(base, "service")
}

// extractTSDependencies records constructor-injected and inject()-acquired
// collaborators and returns the field -> type alias table.
func extractTSDependencies(e *Entity, src string, lines lineIndex) map[string]string {
	aliases := make(map[string]string)

	for _, loc := range tsCtorRe.FindAllStringIndex(src, -1) {
		open := loc[1] - 1
		closeIdx := matchDelim(src, open, '(', ')')
		if closeIdx < 0 {
			continue
		}
		for _, param := range splitTopLevel(src[open+1 : closeIdx]) {
			m := tsCtorParamRe.FindStringSubmatch(param)
			if m == nil {
				continue
			}
			typ := baseTypeName(m[2])
			aliases[m[1]] = typ
			e.Dependencies = append(e.Dependencies, Dependency{
				Name:   typ,
				Field:  m[1],
				Line:   lines.line(open),
				Source: FromInjection,
			})
		}
	}

	for _, m := range tsInjectRe.FindAllStringSubmatchIndex(src, -1) {
		field := src[m[2]:m[3]]
		typ := baseTypeName(src[m[4]:m[5]])
		if controlKeywords[field] {
			field = ""
		} else {
			aliases[field] = typ
		}
		e.Dependencies = append(e.Dependencies, Dependency{
			Name:   typ,
			Field:  field,
			Line:   lines.line(m[4]),
			Source: FromAcquisition,
		})
	}
	return aliases
}

// extractTSOperations records method declarations and returns their body spans.
func extractTSOperations(e *Entity, src string, lines lineIndex) []span {
	var spans []span
	for _, m := range tsOperationRe.FindAllStringSubmatchIndex(src, -1) {
		nameStart := m[2]
		name := src[m[2]:m[3]]
		if controlKeywords[name] {
			continue
		}
		if nameStart > 0 && src[nameStart-1] == '.' {
			continue
		}
		op := Operation{
			Name:   name,
			Params: splitTopLevel(src[m[4]:m[5]]),
			Line:   lines.line(nameStart),
		}
		if m[6] >= 0 {
			op.ReturnType = strings.TrimSpace(src[m[6]:m[7]])
		}
		e.Operations = append(e.Operations, op)

		open := m[1] - 1
		if closeIdx := matchDelim(src, open, '{', '}'); closeIdx >= 0 {
			spans = append(spans, span{name: name, start: open, end: closeIdx + 1})
		}
	}
	return spans
}

// extractTSNetworkCalls records HTTP calls and returns the offsets of
// this.<x>.<verb>( sites so they are not also counted as invocations.
func extractTSNetworkCalls(e *Entity, src string, lines lineIndex, spans []span) map[int]bool {
	callSites := make(map[int]bool)

	type hit struct {
		offset     int
		verb, path string
	}
	var hits []hit
	for _, m := range tsMemberHTTPRe.FindAllStringSubmatchIndex(src, -1) {
		callSites[m[0]] = true
		hits = append(hits, hit{offset: m[0], verb: src[m[4]:m[5]], path: src[m[6]:m[7]]})
	}
	for _, m := range tsClientHTTPRe.FindAllStringSubmatchIndex(src, -1) {
		hits = append(hits, hit{offset: m[2], verb: src[m[4]:m[5]], path: src[m[6]:m[7]]})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].offset < hits[j].offset })

	for _, h := range hits {
		e.NetworkCalls = append(e.NetworkCalls, NetworkCall{
			Verb:      strings.ToUpper(h.verb),
			Path:      h.path,
			Line:      lines.line(h.offset),
			Operation: enclosing(spans, h.offset),
		})
	}
	return callSites
}

func extractTSInvocations(e *Entity, src string, lines lineIndex, spans []span, aliases map[string]string, callSites map[int]bool) {
	for _, m := range tsInvokeRe.FindAllStringSubmatchIndex(src, -1) {
		if callSites[m[0]] {
			continue
		}
		receiver := src[m[2]:m[3]]
		collaborator := receiver
		if typ, ok := aliases[receiver]; ok {
			collaborator = typ
		}
		e.Invocations = append(e.Invocations, InvocationEdge{
			Caller:       enclosing(spans, m[0]),
			Receiver:     receiver,
			Collaborator: collaborator,
			Method:       src[m[4]:m[5]],
			Line:         lines.line(m[0]),
		})
	}
}

package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/DeusData/callpath-mapper/internal/lang"
)

const csModifiers = `public|private|protected|internal|static|async|virtual|override|sealed|abstract|new|partial|extern|unsafe|readonly|file`

// regex patterns for C# source
var (
	csClassRe    = regexp.MustCompile(`(?m)^[ \t]*(?:\[[^\n]*?\][ \t]*)*(?:(?:` + csModifiers + `)[ \t]+)*class[ \t]+([A-Za-z_]\w*)`)
	csTypeDeclRe = regexp.MustCompile(`(?m)^[ \t]*(?:\[[^\n]*?\][ \t]*)*(?:(?:` + csModifiers + `)[ \t]+)*(?:record(?:[ \t]+(?:class|struct))?|struct|interface)[ \t]+([A-Za-z_]\w*)`)

	csClassKeywordRe  = regexp.MustCompile(`\b(?:class|record)\s+[A-Za-z_]`)
	csAPIControllerRe = regexp.MustCompile(`\[\s*ApiController\s*[\],]`)

	// [HttpGet("orders/{id}")], [Route("api/[controller]")], [HttpPost]
	csRouteAttrRe = regexp.MustCompile(`[\[,]\s*(HttpGet|HttpPost|HttpPut|HttpDelete|HttpPatch|HttpHead|HttpOptions|Route)\b\s*(?:\(\s*(?:template\s*:\s*)?@?"([^"]*)"[^)]*\))?`)

	// [attrs] modifiers ReturnType Name<T>(params) where ... { | =>
	csOperationRe = regexp.MustCompile(`(?m)^[ \t]*(?:\[[^\n]*?\][ \t]*)*((?:(?:` + csModifiers + `)[ \t]+)*)([A-Za-z_][\w.]*(?:<[^()\n{};=]*>)?(?:\[\])*\??)[ \t]+([A-Za-z_]\w*)[ \t]*(?:<[^()\n]*?>)?[ \t]*\(((?:[^()]|\([^()]*\))*)\)\s*(?:where\b[^{;]*)?(\{|=>)`)

	// private readonly IOrderService _orders;
	csFieldRe = regexp.MustCompile(`(?m)^[ \t]*(?:(?:private|protected|public|internal|static|readonly)[ \t]+)+([A-Za-z_][\w.]*(?:<[^()\n;=]*>)?\??)[ \t]+([A-Za-z_]\w*)[ \t]*[;=]`)

	csParamAttrRe = regexp.MustCompile(`\[[^\]]*\]`)

	// _orders = provider.GetRequiredService<IOrderService>()
	csLocatorRe = regexp.MustCompile(`(?:\b([A-Za-z_]\w*)\s*=\s*)?[\w.?]*\bGet(?:Required)?Service\s*<\s*([A-Za-z_][\w.]*)\s*>`)
	// _orders = new OrderService(
	csNewAssignRe = regexp.MustCompile(`\b([A-Za-z_]\w*)\s*=\s*new\s+([A-Z][\w.]*)\s*\(`)
	// services.AddScoped<IOrderService, OrderService>()
	csRegistrationRe = regexp.MustCompile(`\bAdd(?:Scoped|Singleton|Transient)\s*<\s*([A-Za-z_][\w.]*)\s*(?:,\s*([A-Za-z_][\w.]*)\s*)?>`)

	// [await] [this.]receiver.Method<T>(
	csInvokeRe = regexp.MustCompile(`(?:\bthis\.)?\b([A-Za-z_]\w*)\.([A-Za-z_]\w*)\s*(?:<[^()]*?>)?\s*\(`)
)

// csParamModifiers precede a parameter type and are not part of it.
var csParamModifiers = map[string]bool{
	"this": true, "ref": true, "out": true, "in": true, "params": true,
	"scoped": true, "readonly": true,
}

// Backend extracts a class-like entity from C# source. It returns nil when the
// text declares no class, record, struct or interface and carries no route
// attribute.
func Backend(path, content string) *Entity {
	src := maskComments(content)
	attrs := csRouteAttrRe.FindAllStringSubmatchIndex(src, -1)

	name := ""
	if m := csClassRe.FindStringSubmatch(src); m != nil {
		name = m[1]
	} else if m := csTypeDeclRe.FindStringSubmatch(src); m != nil {
		name = m[1]
	}
	if name == "" {
		if len(attrs) == 0 {
			return nil
		}
		name = nameFromFile(path)
	}

	e := &Entity{
		Name:     name,
		Kind:     KindClass,
		Layer:    lang.Backend,
		FilePath: path,
	}

	lines := newLineIndex(src)
	aliases := extractCSDependencies(e, src, lines)
	ops := extractCSOperations(e, src, lines)
	extractCSRoutes(e, src, blankStrings(src), lines, attrs, ops)
	extractCSInvocations(e, src, lines, ops, aliases)

	if strings.HasSuffix(name, "Controller") || len(e.Routes) > 0 || csAPIControllerRe.MatchString(src) {
		e.Kind = KindController
	}
	return e
}

// csOp is a declared operation plus the offsets used to attribute route
// attributes and invocations to it.
type csOp struct {
	name      string
	nameStart int
	body      span
	hasBody   bool
}

func extractCSOperations(e *Entity, src string, lines lineIndex) []csOp {
	var ops []csOp
	for _, m := range csOperationRe.FindAllStringSubmatchIndex(src, -1) {
		returnType := src[m[4]:m[5]]
		name := src[m[6]:m[7]]
		if controlKeywords[name] || controlKeywords[returnType] || name == e.Name {
			continue
		}
		op := csOp{name: name, nameStart: m[6]}

		opener := m[10]
		if src[opener] == '{' {
			if closeIdx := matchDelim(src, opener, '{', '}'); closeIdx >= 0 {
				op.body = span{name: name, start: opener, end: closeIdx + 1}
				op.hasBody = true
			}
		} else if semi := strings.IndexByte(src[opener:], ';'); semi >= 0 {
			op.body = span{name: name, start: opener, end: opener + semi + 1}
			op.hasBody = true
		}
		ops = append(ops, op)

		e.Operations = append(e.Operations, Operation{
			Name:       name,
			ReturnType: strings.TrimSpace(returnType),
			Params:     splitTopLevel(src[m[8]:m[9]]),
			Line:       lines.line(m[6]),
		})
	}
	return ops
}

func opSpans(ops []csOp) []span {
	spans := make([]span, 0, len(ops))
	for _, op := range ops {
		if op.hasBody {
			spans = append(spans, op.body)
		}
	}
	return spans
}

// extractCSRoutes binds route attributes to the operation declared directly
// after them. A Route attribute sitting on the class declaration becomes the
// entity's RoutePrefix; attributes attached to nothing are dropped. bare is src
// with string contents blanked so template braces never read as blocks.
func extractCSRoutes(e *Entity, src, bare string, lines lineIndex, attrs [][]int, ops []csOp) {
	type attr struct {
		verb     string
		template string
		hasPath  bool
		offset   int
	}
	grouped := make(map[int][]attr) // op index -> attributes in source order
	var order []int

	for _, m := range attrs {
		a := attr{offset: m[2]}
		if kind := src[m[2]:m[3]]; kind != "Route" {
			a.verb = strings.ToUpper(strings.TrimPrefix(kind, "Http"))
		}
		if m[4] >= 0 {
			a.template = src[m[4]:m[5]]
			a.hasPath = true
		}

		opIdx := nextOperation(bare, m[1], ops)
		if opIdx < 0 {
			if a.verb == "" && a.hasPath && e.RoutePrefix == "" && precedesClass(bare, m[1]) {
				e.RoutePrefix = a.template
			}
			continue
		}
		if _, seen := grouped[opIdx]; !seen {
			order = append(order, opIdx)
		}
		grouped[opIdx] = append(grouped[opIdx], a)
	}

	for _, opIdx := range order {
		group := grouped[opIdx]
		groupVerb := ""
		for _, a := range group {
			if a.verb != "" {
				groupVerb = a.verb
				break
			}
		}
		for _, a := range group {
			if !a.hasPath {
				continue
			}
			verb := a.verb
			if verb == "" {
				verb = groupVerb
			}
			e.setRoute(RouteBinding{
				Template:  a.template,
				Verb:      verb,
				Operation: ops[opIdx].name,
				Line:      lines.line(a.offset),
			})
		}
	}
}

// nextOperation returns the index of the first operation declared after off
// when nothing but attributes and modifiers separate them, or -1.
func nextOperation(src string, off int, ops []csOp) int {
	for i, op := range ops {
		if op.nameStart < off {
			continue
		}
		if strings.ContainsAny(src[off:op.nameStart], ";{}") {
			return -1
		}
		return i
	}
	return -1
}

func precedesClass(src string, off int) bool {
	loc := csClassKeywordRe.FindStringIndex(src[off:])
	if loc == nil {
		return false
	}
	return !strings.ContainsAny(src[off:off+loc[0]], ";{}")
}

// extractCSDependencies records constructor-injected, service-located,
// directly constructed and container-registered collaborators. It returns the
// field/parameter -> type alias table used to resolve invocation receivers.
func extractCSDependencies(e *Entity, src string, lines lineIndex) map[string]string {
	aliases := make(map[string]string)

	for _, m := range csFieldRe.FindAllStringSubmatch(src, -1) {
		if controlKeywords[m[1]] {
			continue
		}
		aliases[m[2]] = baseTypeName(m[1])
	}

	q := regexp.QuoteMeta(e.Name)
	ctorRe := regexp.MustCompile(`(?:\b(?:public|internal|protected|private)\s+` + q + `|\b(?:class|record)\s+` + q + `)\s*\(`)
	for _, loc := range ctorRe.FindAllStringIndex(src, -1) {
		open := loc[1] - 1
		closeIdx := matchDelim(src, open, '(', ')')
		if closeIdx < 0 {
			continue
		}
		for _, param := range splitTopLevel(src[open+1 : closeIdx]) {
			typ, field := parseCSParam(param)
			if typ == "" {
				continue
			}
			aliases[field] = typ
			e.Dependencies = append(e.Dependencies, Dependency{
				Name:   typ,
				Field:  field,
				Line:   lines.line(open),
				Source: FromInjection,
			})
		}
	}

	type acq struct {
		offset int
		dep    Dependency
	}
	var found []acq
	add := func(offset int, field, typ string) {
		typ = baseTypeName(typ)
		if field != "" {
			aliases[field] = typ
		}
		found = append(found, acq{offset, Dependency{Name: typ, Field: field, Line: lines.line(offset), Source: FromAcquisition}})
	}
	for _, m := range csLocatorRe.FindAllStringSubmatchIndex(src, -1) {
		field := ""
		if m[2] >= 0 {
			field = src[m[2]:m[3]]
		}
		add(m[4], field, src[m[4]:m[5]])
	}
	for _, m := range csNewAssignRe.FindAllStringSubmatchIndex(src, -1) {
		typ := src[m[4]:m[5]]
		if strings.HasSuffix(typ, "Exception") {
			continue
		}
		add(m[4], src[m[2]:m[3]], typ)
	}
	for _, m := range csRegistrationRe.FindAllStringSubmatchIndex(src, -1) {
		add(m[2], "", src[m[2]:m[3]])
		if m[4] >= 0 {
			add(m[4], "", src[m[4]:m[5]])
		}
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].offset < found[j].offset })
	for _, a := range found {
		e.Dependencies = append(e.Dependencies, a.dep)
	}
	return aliases
}

// parseCSParam splits "[FromServices] IOrderService orders = null" into its
// base type name and parameter name.
func parseCSParam(param string) (typ, name string) {
	param = csParamAttrRe.ReplaceAllString(param, " ")
	if i := strings.IndexByte(param, '='); i >= 0 {
		param = param[:i]
	}
	fields := strings.Fields(param)
	for len(fields) > 0 && csParamModifiers[fields[0]] {
		fields = fields[1:]
	}
	if len(fields) < 2 {
		return "", ""
	}
	name = fields[len(fields)-1]
	typ = baseTypeName(strings.Join(fields[:len(fields)-1], " "))
	return typ, name
}

func extractCSInvocations(e *Entity, src string, lines lineIndex, ops []csOp, aliases map[string]string) {
	spans := opSpans(ops)
	for _, m := range csInvokeRe.FindAllStringSubmatchIndex(src, -1) {
		if m[0] > 0 && src[m[0]-1] == '.' {
			continue
		}
		receiver := src[m[2]:m[3]]
		if builtinReceivers[receiver] || controlKeywords[receiver] {
			continue
		}
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

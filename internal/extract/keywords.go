package extract

// controlKeywords can never name an operation: the "name(...) {" shape also
// matches control-flow statements.
var controlKeywords = map[string]bool{
	"if": true, "else": true, "for": true, "foreach": true, "while": true,
	"do": true, "switch": true, "case": true, "catch": true, "try": true,
	"finally": true, "return": true, "throw": true, "new": true,
	"function": true, "typeof": true, "instanceof": true, "await": true,
	"yield": true, "with": true, "using": true, "lock": true, "fixed": true,
	"checked": true, "unchecked": true, "nameof": true, "sizeof": true,
	"default": true, "when": true, "super": true, "base": true, "this": true,
	"get": true, "set": true, "init": true, "var": true, "let": true,
	"const": true, "in": true, "of": true, "is": true, "as": true,
}

// builtinReceivers are receivers of qualified calls that are never
// collaborators (language built-ins and static helpers).
var builtinReceivers = map[string]bool{
	"this": true, "base": true, "string": true, "String": true, "int": true,
	"object": true, "Object": true, "Math": true, "Array": true, "JSON": true,
	"console": true, "Console": true, "Task": true, "Enumerable": true,
	"Convert": true, "Guid": true, "DateTime": true, "Promise": true,
	"window": true, "document": true, "nameof": true,
}

package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeindex-dev/codeindex/internal/parser"
)

func extractTS(t *testing.T, src string) *FileFacts {
	t.Helper()
	tree, err := parser.Parse("test.ts", parser.LangTypeScript, []byte(src))
	require.NoError(t, err)
	t.Cleanup(tree.Close)
	facts, err := Extract(tree)
	require.NoError(t, err)
	return facts
}

func TestExtractTS_FunctionSignature(t *testing.T) {
	t.Parallel()
	facts := extractTS(t, `export async function fetchUser(id: string): Promise<User> {
	return db.users.findOne(id);
}`)

	fn, ok := facts.Functions["fetchUser"]
	require.True(t, ok)
	assert.Equal(t, KindFunction, fn.Kind)
	assert.True(t, fn.Metadata.Async)
	assert.True(t, fn.Metadata.Exported)
	assert.Contains(t, fn.Signature, "Promise<User>")
}

func TestExtractTS_ClassWithHeritageAndMembers(t *testing.T) {
	t.Parallel()
	facts := extractTS(t, `class Dog extends Animal {
	static count = 0;
	constructor(name: string) {
		super(name);
	}
	bark(): void {
		console.log("woof");
	}
}`)

	cf, ok := facts.Classes["Dog"]
	require.True(t, ok)
	assert.Equal(t, []string{"Animal"}, cf.Symbol.Inheritance)

	ctor, ok := cf.Methods["constructor"]
	require.True(t, ok)
	assert.Equal(t, KindConstructor, ctor.Kind)

	bark, ok := cf.Methods["bark"]
	require.True(t, ok)
	assert.Equal(t, KindMethod, bark.Kind)
	assert.Equal(t, []string{"Dog"}, bark.Parents)
}

func TestExtractTS_InterfaceExtends(t *testing.T) {
	t.Parallel()
	facts := extractTS(t, `export interface Writer extends Flushable {
	write(chunk: string): void;
}`)

	iface, ok := facts.Interfaces["Writer"]
	require.True(t, ok)
	assert.Equal(t, []string{"Flushable"}, iface.Inheritance)
	assert.True(t, iface.Metadata.Exported)
}

func TestExtractTS_ConstVsLet(t *testing.T) {
	t.Parallel()
	facts := extractTS(t, `const MAX = 10;
let total = 0;`)

	max, ok := facts.Variables["MAX"]
	require.True(t, ok)
	assert.Equal(t, KindConstant, max.Kind)

	total, ok := facts.Variables["total"]
	require.True(t, ok)
	assert.Equal(t, KindVariable, total.Kind)
}

func TestExtractTS_CallChain(t *testing.T) {
	t.Parallel()
	facts := extractTS(t, `query().filter(x).run();`)

	require.GreaterOrEqual(t, len(facts.Calls), 3)
	var run *Call
	for i := range facts.Calls {
		if facts.Calls[i].Callee == "run" {
			run = &facts.Calls[i]
		}
	}
	require.NotNil(t, run)
	assert.Equal(t, CallMethod, run.Kind)
	require.NotNil(t, run.Chain)
	assert.Equal(t, "filter", run.Chain.Previous)
}

func TestExtractTS_ImportsAndExports(t *testing.T) {
	t.Parallel()
	facts := extractTS(t, `import { foo as bar } from "./lib";
export { baz };`)

	require.Len(t, facts.Imports, 1)
	assert.Equal(t, "./lib", facts.Imports[0].Module)
	assert.Equal(t, "bar", facts.Imports[0].Specifiers[0].Local)
	assert.Equal(t, "foo", facts.Imports[0].Specifiers[0].Imported)

	require.Len(t, facts.Exports, 1)
	assert.Equal(t, "baz", facts.Exports[0].Specifiers[0].Local)
}

func TestExtractTS_NewExpressionIsConstructorCall(t *testing.T) {
	t.Parallel()
	facts := extractTS(t, `const c = new Client(options);`)

	require.Len(t, facts.Calls, 1)
	assert.Equal(t, CallConstructor, facts.Calls[0].Kind)
	assert.Equal(t, "Client", facts.Calls[0].Callee)
	assert.Equal(t, 1, facts.Calls[0].ArgumentCount)
}

func TestExtractTS_CallInsideFunctionBodyIsRecorded(t *testing.T) {
	t.Parallel()
	facts := extractTS(t, `function handle() {
  logger.info("start");
  return worker.run();
}`)

	require.Len(t, facts.Functions, 1)
	var callees []string
	for _, c := range facts.Calls {
		callees = append(callees, c.Callee)
	}
	assert.Contains(t, callees, "info")
	assert.Contains(t, callees, "run")
}

func TestExtractTS_CallInsideMethodBodyIsRecorded(t *testing.T) {
	t.Parallel()
	facts := extractTS(t, `class Service {
  start() {
    this.setup();
    helper();
  }
}`)

	require.Contains(t, facts.Classes, "Service")
	require.Contains(t, facts.Classes["Service"].Methods, "start")
	var callees []string
	for _, c := range facts.Calls {
		callees = append(callees, c.Callee)
	}
	assert.Contains(t, callees, "setup")
	assert.Contains(t, callees, "helper")
}

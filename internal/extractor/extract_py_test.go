package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeindex-dev/codeindex/internal/parser"
)

func extractPy(t *testing.T, src string) *FileFacts {
	t.Helper()
	tree, err := parser.Parse("test.py", parser.LangPython, []byte(src))
	require.NoError(t, err)
	t.Cleanup(tree.Close)
	facts, err := Extract(tree)
	require.NoError(t, err)
	return facts
}

func TestExtractPy_ClassWithMultipleBases(t *testing.T) {
	t.Parallel()
	facts := extractPy(t, `class Worker(BaseWorker, mixins.Loggable):
    """Handles a unit of work."""

    def __init__(self, name):
        self.name = name

    def run(self):
        return self.name
`)

	cf, ok := facts.Classes["Worker"]
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"BaseWorker", "mixins.Loggable"}, cf.Symbol.Inheritance)
	assert.Contains(t, cf.Symbol.Signature, "Handles a unit of work")

	ctor, ok := cf.Methods["__init__"]
	require.True(t, ok)
	assert.Equal(t, KindConstructor, ctor.Kind)

	run, ok := cf.Methods["run"]
	require.True(t, ok)
	assert.Equal(t, KindMethod, run.Kind)
}

func TestExtractPy_DecoratedStaticMethod(t *testing.T) {
	t.Parallel()
	facts := extractPy(t, `class Util:
    @staticmethod
    def square(x):
        return x * x
`)

	cf, ok := facts.Classes["Util"]
	require.True(t, ok)
	m, ok := cf.Methods["square"]
	require.True(t, ok)
	assert.True(t, m.Metadata.Static)
}

func TestExtractPy_AsyncFunctionAndPrivateName(t *testing.T) {
	t.Parallel()
	facts := extractPy(t, `async def _fetch(url):
    return await session.get(url)
`)

	fn, ok := facts.Functions["_fetch"]
	require.True(t, ok)
	assert.True(t, fn.Metadata.Async)
	assert.False(t, fn.Metadata.Exported)
}

func TestExtractPy_ImportFrom(t *testing.T) {
	t.Parallel()
	facts := extractPy(t, `from collections import OrderedDict as OD
`)

	require.Len(t, facts.Imports, 1)
	assert.Equal(t, "collections", facts.Imports[0].Module)
	assert.Equal(t, "OD", facts.Imports[0].Specifiers[0].Local)
	assert.Equal(t, "OrderedDict", facts.Imports[0].Specifiers[0].Imported)
}

func TestExtractPy_ConstructorCallByCapitalizedName(t *testing.T) {
	t.Parallel()
	facts := extractPy(t, `session = Session()
result = session.get(url)
`)

	require.Len(t, facts.Calls, 2)
	assert.Equal(t, CallConstructor, facts.Calls[0].Kind)
	assert.Equal(t, "Session", facts.Calls[0].Callee)
	assert.Equal(t, CallMethod, facts.Calls[1].Kind)
	assert.Equal(t, "get", facts.Calls[1].Callee)
	assert.Equal(t, "session", facts.Calls[1].Receiver)
}

func TestExtractPy_CallInsideFunctionBodyIsRecorded(t *testing.T) {
	t.Parallel()
	facts := extractPy(t, `def handle():
    logger.info("start")
    return worker.run()
`)

	require.Contains(t, facts.Functions, "handle")
	var callees []string
	for _, c := range facts.Calls {
		callees = append(callees, c.Callee)
	}
	assert.Contains(t, callees, "info")
	assert.Contains(t, callees, "run")
}

func TestExtractPy_CallInsideMethodBodyIsRecorded(t *testing.T) {
	t.Parallel()
	facts := extractPy(t, `class Service:
    def start(self):
        self.setup()
        helper()
`)

	require.Contains(t, facts.Classes, "Service")
	require.Contains(t, facts.Classes["Service"].Methods, "start")
	var callees []string
	for _, c := range facts.Calls {
		callees = append(callees, c.Callee)
	}
	assert.Contains(t, callees, "setup")
	assert.Contains(t, callees, "helper")
}

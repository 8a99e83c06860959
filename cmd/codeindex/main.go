// Command codeindex is the CLI shell spec §6 names: init, doctor, metrics,
// config, index, embed, refresh, plus a serve subcommand that runs the
// JSON-RPC tool server itself named as out-of-scope transport by spec §1
// (a thin shell around internal/toolserver, the same way the teacher's
// "cortex mcp" subcommand shells out to internal/mcp.NewMCPServer).
package main

func main() {
	Execute()
}

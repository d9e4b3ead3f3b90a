// Command sushi-rag serves a sushi knowledge base to MCP clients. It answers
// questions with retrieval-augmented generation over a Qdrant collection,
// and provides the ingestion step that populates that collection.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/sushi-rag/cmd/sushi-rag/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

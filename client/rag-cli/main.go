package main

import "pdf_rag/client/rag-cli/cmd"

func main() {
	cmd.Execute()
}

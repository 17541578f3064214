package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

var showSources bool

var indexCmd = &cobra.Command{
	Use:   "index [file.pdf]",
	Short: "Upload a PDF to the RAG service and index it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if !strings.HasSuffix(strings.ToLower(args[0]), ".pdf") {
			fmt.Fprintln(out, warnStyle.Render("Please choose a PDF file."))
			return nil
		}
		resp, err := newClient().IndexPDF(cmd.Context(), args[0])
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render(fmt.Sprintf("An error occurred during indexing: %v", err)))
			return err
		}
		fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("%s (%d chunks)", resp.Message, resp.Chunks)))
		return nil
	},
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the indexed documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return ask(cmd.Context(), cmd.OutOrStdout(), newClient(), strings.Join(args, " "))
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask questions interactively until 'exit'",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return chat(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), newClient())
	},
}

var aboutCmd = &cobra.Command{
	Use:   "about",
	Short: "Explain how indexing, retrieval and generation work",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		about(cmd.OutOrStdout())
	},
}

func init() {
	askCmd.Flags().BoolVar(&showSources, "sources", false, "print the chunks the answer was grounded on")
	chatCmd.Flags().BoolVar(&showSources, "sources", false, "print the chunks each answer was grounded on")
	rootCmd.AddCommand(indexCmd, askCmd, chatCmd, aboutCmd)
}

func ask(ctx context.Context, out io.Writer, c *Client, query string) error {
	if strings.TrimSpace(query) == "" {
		fmt.Fprintln(out, warnStyle.Render("Please enter a question."))
		return nil
	}
	resp, err := c.Ask(ctx, query)
	if err != nil {
		fmt.Fprintln(out, errorStyle.Render(fmt.Sprintf("Error: %v", err)))
		return err
	}

	line := "Chatbot Response: " + resp.Answer
	if IsNoAnswer(resp.Answer) {
		fmt.Fprintln(out, errorStyle.Render(line))
	} else {
		fmt.Fprintln(out, successStyle.Render(line))
	}
	if showSources {
		for i, s := range resp.Sources {
			fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("  [%d] %.3f %s: %s", i+1, s.Score, s.Metadata["file_name"], s.Text)))
		}
	}
	return nil
}

func chat(ctx context.Context, in io.Reader, out io.Writer, c *Client) error {
	fmt.Fprintln(out, headerStyle.Render("RAG Chatbot"))
	fmt.Fprintln(out, dimStyle.Render("Type your question, or 'exit' to quit."))

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		q := strings.TrimSpace(scanner.Text())
		switch q {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		// A failed question does not end the session.
		_ = ask(ctx, out, c, q)
	}
}

func about(out io.Writer) {
	sections := []struct{ title, body string }{
		{"Indexing", `- Documents are converted from PDF into plain text.
- Chunking groups consecutive sentences into small chunks.
- Embedding turns each chunk into a vector with a hosted embedding model.
- Storage writes the vectors to the vector database for similarity search.`},
		{"Retrieval", `- The query is embedded with the same model used for indexing.
- The retriever returns the chunks nearest to the query vector.`},
		{"Generation", `- A fixed prompt combines the retrieved chunks with the query.
- A hosted language model answers from that context, or replies "I don't know".`},
	}
	for _, s := range sections {
		fmt.Fprintln(out, headerStyle.Render(s.title))
		fmt.Fprintln(out, s.body)
		fmt.Fprintln(out)
	}
}

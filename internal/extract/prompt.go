package extract

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ResumeChoice is the operator's answer when the output file already exists.
type ResumeChoice int

const (
	ResumeQuit ResumeChoice = iota
	ResumeOverwrite
	ResumeContinue
)

// Prompter asks the operator blocking questions.
type Prompter interface {
	// RetrySave is asked after a checkpoint write failed.
	RetrySave(err error) bool
	// Resume is asked when the checkpoint at path exists.
	Resume(path string) ResumeChoice
}

// TerminalPrompter reads answers line by line from in and writes prompts to out.
type TerminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func NewTerminalPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{in: bufio.NewReader(in), out: out}
}

func (p *TerminalPrompter) RetrySave(err error) bool {
	fmt.Fprintf(p.out, "Unable to write to file: %v\n", err)
	fmt.Fprintln(p.out, "Could not save the files. Make sure the files to write are not open.")
	return p.ask("Try saving files again? <y,n> ") == "y"
}

func (p *TerminalPrompter) Resume(path string) ResumeChoice {
	fmt.Fprintf(p.out, "The file %s already exists\n", path)
	switch p.ask("Do you want to overwrite it (o), or continue an incomplete email dump (c)? (q to quit) <o/c> ") {
	case "o":
		return ResumeOverwrite
	case "c":
		return ResumeContinue
	default:
		return ResumeQuit
	}
}

// ask returns the lower-cased answer; EOF reads as an empty answer.
func (p *TerminalPrompter) ask(q string) string {
	fmt.Fprint(p.out, q)
	line, _ := p.in.ReadString('\n')
	return strings.ToLower(strings.TrimSpace(line))
}

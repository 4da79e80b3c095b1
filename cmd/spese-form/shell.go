package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"casaspese/internal/api/memory"
	"casaspese/internal/core"
	"casaspese/internal/expenselist"
	"casaspese/internal/form"
	"casaspese/internal/submission"
)

const help = `commands:
  open                     open the add-expense form
  set <field> <value>      set a field (amount, date, description, category_id,
                           paid_by_user_id, split_type, split_ratio_user1, split_ratio_user2)
  fields                   show the form and its errors
  submit                   save and close
  another                  save and keep the form open
  retry                    resend the last failed expense
  close                    close the form, asking first if it has changes
  discard | keep           answer the discard prompt
  list                     show the expense list
  categories | users       show the directories
  budget                   show the remaining budget hint
  fail <status>            make the next create fail (memory backend only)
  help | quit`

// shell drives a coordinator from line commands.
type shell struct {
	coord  *submission.Coordinator
	store  *expenselist.Store
	memory *memory.Store
	out    io.Writer
}

// run reads commands until EOF, quit or ctx ends.
func (s *shell) run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	s.prompt()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if line = strings.TrimSpace(line); line != "" {
				if quit := s.exec(ctx, line); quit {
					return nil
				}
			}
			s.prompt()
		}
	}
}

func (s *shell) prompt() {
	if s.coord.IsOpen() {
		fmt.Fprint(s.out, "form> ")
		return
	}
	fmt.Fprint(s.out, "> ")
}

func (s *shell) exec(ctx context.Context, line string) (quit bool) {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(cmd) {
	case "quit", "exit":
		return true
	case "help", "?":
		fmt.Fprintln(s.out, help)
	case "open":
		s.report(s.coord.Open(ctx))
		if s.coord.IsOpen() {
			fmt.Fprintf(s.out, "form %s open\n", s.coord.InstanceID())
		}
	case "set":
		field, value, _ := strings.Cut(rest, " ")
		if field == "" {
			fmt.Fprintln(s.out, "usage: set <field> <value>")
			return false
		}
		s.report(s.coord.SetField(form.Field(field), strings.TrimSpace(value)))
	case "fields":
		s.showFields()
	case "submit":
		if s.report(s.coord.Submit(ctx)) {
			fmt.Fprintln(s.out, "saved")
		}
	case "another":
		if s.report(s.coord.SaveAndAddAnother(ctx)) {
			fmt.Fprintln(s.out, "saved, form ready for the next expense")
		}
	case "retry":
		if s.report(s.coord.Retry(ctx)) {
			fmt.Fprintln(s.out, "saved")
		}
	case "close":
		switch {
		case !s.coord.IsOpen():
			fmt.Fprintln(s.out, "form is not open")
		case s.coord.RequestClose():
		case s.coord.PromptShown():
			fmt.Fprintln(s.out, "unsaved changes: discard or keep?")
		default:
			fmt.Fprintln(s.out, "a save is in progress")
		}
	case "discard":
		s.report(s.coord.ConfirmDiscard())
	case "keep":
		s.report(s.coord.CancelDiscard())
	case "list":
		s.showList()
	case "categories":
		s.showDirectory(s.coord.Categories())
	case "users":
		s.showDirectory(s.coord.Users())
	case "budget":
		if remaining, ok := s.coord.BudgetRemaining(); ok {
			fmt.Fprintf(s.out, "remaining this month: %s\n", remaining)
		} else {
			fmt.Fprintln(s.out, "no budget information yet")
		}
	case "fail":
		s.injectFailure(rest)
	default:
		fmt.Fprintf(s.out, "unknown command %q, try help\n", cmd)
	}
	return false
}

// report prints err in user terms and returns whether there was none.
func (s *shell) report(err error) bool {
	if err == nil {
		return true
	}
	var (
		verr *form.ValidationError
		serr *submission.SubmitError
	)
	switch {
	case errors.As(err, &verr):
		for _, r := range verr.Validation.Invalid() {
			fmt.Fprintf(s.out, "  %s: %v\n", r.Field, r.Err)
		}
	case errors.As(err, &serr):
		fmt.Fprintf(s.out, "could not save (%s): %v\n", serr.Class, serr.Err)
		if _, ok := s.coord.RetryPayload(); ok {
			fmt.Fprintln(s.out, "type retry to try again")
		}
	default:
		fmt.Fprintf(s.out, "error: %v\n", err)
	}
	return false
}

func (s *shell) showFields() {
	fields, err := s.coord.Fields()
	if err != nil {
		s.report(err)
		return
	}
	errs := s.coord.Errors()
	for _, name := range form.AllFields() {
		line := fmt.Sprintf("  %-18s %s", name, fields.Get(name))
		if e := errs.Err(name); e != nil {
			line += fmt.Sprintf("  (%v)", e)
		}
		fmt.Fprintln(s.out, line)
	}
}

func (s *shell) showList() {
	records := s.store.Snapshot()
	if len(records) == 0 {
		fmt.Fprintln(s.out, "no expenses")
		return
	}
	w := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	for _, r := range records {
		state := ""
		if r.IsTemporary() {
			state = "saving"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Date, r.Amount, r.CategoryName, r.PaidByName, r.Description, state)
	}
	w.Flush()
}

func (s *shell) showDirectory(entries []core.DirectoryEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(s.out, "nothing loaded, open the form first")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(s.out, "  %d  %s\n", e.ID, e.Name)
	}
}

func (s *shell) injectFailure(arg string) {
	if s.memory == nil {
		fmt.Fprintln(s.out, "failure injection needs the memory backend")
		return
	}
	status, err := strconv.Atoi(arg)
	if err != nil || status < 400 || status > 599 {
		fmt.Fprintln(s.out, "usage: fail <status 400-599>")
		return
	}
	s.memory.FailNext(&core.APIError{Status: status, Message: "injected failure"})
	fmt.Fprintf(s.out, "next create fails with %d\n", status)
}

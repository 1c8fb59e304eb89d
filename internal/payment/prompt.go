package payment

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
)

// PromptOpener completes a hosted checkout on a terminal: it prints the order
// and asks the customer for the result the gateway handed back.
type PromptOpener struct {
	in  *bufio.Reader
	out io.Writer
}

func NewPromptOpener(in io.Reader, out io.Writer) *PromptOpener {
	return &PromptOpener{in: bufio.NewReader(in), out: out}
}

func (p *PromptOpener) Open(ctx context.Context, opts Options) (Outcome, error) {
	amount := decimal.New(opts.Amount, -2)

	fmt.Fprintf(p.out, "%s: %s\n", opts.Name, opts.Description)
	fmt.Fprintf(p.out, "  order    %s\n", opts.OrderID)
	fmt.Fprintf(p.out, "  amount   %s %s\n", opts.Currency, amount.StringFixed(2))
	fmt.Fprintf(p.out, "  customer %s <%s> %s\n", opts.Prefill.Name, opts.Prefill.Email, opts.Prefill.Contact)

	answer, err := p.ask(ctx, "result [s]uccess, [f]ail, anything else cancels: ")
	if err != nil {
		return Outcome{}, err
	}

	switch strings.ToLower(answer) {
	case "s", "success":
		paymentID, err := p.ask(ctx, "payment id: ")
		if err != nil {
			return Outcome{}, err
		}
		signature, err := p.ask(ctx, "signature: ")
		if err != nil {
			return Outcome{}, err
		}
		if paymentID == "" {
			return Outcome{Status: StatusDismissed}, nil
		}
		return Outcome{Status: StatusSuccess, PaymentID: paymentID, OrderID: opts.OrderID, Signature: signature}, nil

	case "f", "fail":
		reason, err := p.ask(ctx, "reason: ")
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Status: StatusFailed, Reason: reason}, nil

	default:
		return Outcome{Status: StatusDismissed}, nil
	}
}

// ask reads one trimmed line. End of input counts as an empty answer.
func (p *PromptOpener) ask(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fmt.Fprint(p.out, prompt)

	line, err := p.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("in.ReadString: %w", err)
	}

	return strings.TrimSpace(line), nil
}

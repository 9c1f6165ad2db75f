// Command orderctl runs one-off operations against the order API from a
// terminal: listing orders, flipping payment, issuing invoices, deleting
// orders and minting development tokens.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kiwari-pos/order-desk/internal/auth"
	"github.com/kiwari-pos/order-desk/internal/model"
	"github.com/kiwari-pos/order-desk/internal/upstream"
	"github.com/olekukonko/tablewriter"
)

const usage = `usage: orderctl [flags] <command> [args]

commands:
  list [-search s] [-payment p] [-delivery d] [-limit n] [-offset n]
  toggle-payment <order-id>
  invoice <order-id>
  delete <order-id>
  token [-subject s] [-role r] [-ttl d]
`

var errUsage = errors.New("invalid usage")

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		fmt.Fprintf(os.Stderr, "orderctl: %v\n", err)
		os.Exit(1)
	}
}

// staticToken forwards a fixed bearer credential.
type staticToken string

func (t staticToken) Token() (string, bool) {
	return string(t), t != ""
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("orderctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	baseURL := fs.String("api", "", "order API base URL")
	token := fs.String("token", "", "bearer token")
	secret := fs.String("secret", "", "JWT signing secret (token command)")
	timeout := fs.Duration("timeout", 15*time.Second, "request timeout")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	// Fall back to environment variables
	if *baseURL == "" {
		*baseURL = os.Getenv("API_BASE_URL")
	}
	if *token == "" {
		*token = os.Getenv("ORDERCTL_TOKEN")
	}
	if *secret == "" {
		*secret = os.Getenv("JWT_SECRET")
	}

	// Fall back to defaults
	if *baseURL == "" {
		*baseURL = "http://localhost:8000"
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return errUsage
	}
	cmd, cmdArgs := rest[0], rest[1:]

	if cmd == "token" {
		return runToken(cmdArgs, *secret, out)
	}

	client := upstream.New(*baseURL, upstream.WithTimeout(*timeout), upstream.WithTokenSource(staticToken(*token)))
	switch cmd {
	case "list":
		return runList(ctx, client, cmdArgs, out)
	case "toggle-payment":
		id, err := orderArg(cmdArgs)
		if err != nil {
			return err
		}
		status, err := client.TogglePayment(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s payment_status=%s\n", id, status)
	case "invoice":
		id, err := orderArg(cmdArgs)
		if err != nil {
			return err
		}
		number, err := client.CreateInvoice(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s invoice_number=%s\n", id, number)
		fmt.Fprintln(out, client.InvoicePrintURL(id))
	case "delete":
		id, err := orderArg(cmdArgs)
		if err != nil {
			return err
		}
		if err := client.DeleteOrder(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s deleted\n", id)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
	return nil
}

func orderArg(args []string) (string, error) {
	if len(args) != 1 || args[0] == "" {
		return "", fmt.Errorf("%w: expected one order id", errUsage)
	}
	return args[0], nil
}

func runList(ctx context.Context, client *upstream.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var f model.Filter
	fs.StringVar(&f.Search, "search", "", "search text")
	fs.StringVar(&f.PaymentStatus, "payment", "", "payment status")
	fs.StringVar(&f.DeliveryStatus, "delivery", "", "delivery status")
	fs.StringVar(&f.Channel, "channel", "", "order channel")
	fs.StringVar(&f.DateFrom, "from", "", "first day, YYYY-MM-DD")
	fs.StringVar(&f.DateTo, "to", "", "last day, YYYY-MM-DD")
	limit := fs.Int("limit", 50, "page size")
	offset := fs.Int("offset", 0, "page offset")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	orders, err := client.ListOrders(ctx, f, *limit, *offset)
	if err != nil {
		return err
	}
	return renderOrders(out, orders)
}

func renderOrders(out io.Writer, orders []model.Order) error {
	table := tablewriter.NewWriter(out)
	table.Header("Order", "Created", "Customer", "Items", "Total", "Payment", "Delivery", "Serials", "Invoice")
	for _, o := range orders {
		customer := ""
		if o.Customer != nil {
			customer = o.Customer.Name
		}
		created := ""
		if !o.CreatedAt.IsZero() {
			created = o.CreatedAt.Format("2006-01-02 15:04")
		}
		invoice := ""
		if o.Invoiced() {
			invoice = *o.InvoiceNumber
		}
		if err := table.Append([]string{
			o.OrderID,
			created,
			customer,
			fmt.Sprint(o.TotalItems),
			o.TotalAmount.StringFixed(2),
			o.PaymentStatus,
			o.DeliveryStatus,
			o.SerialStatus,
			invoice,
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

func runToken(args []string, secret string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	subject := fs.String("subject", "admin", "token subject")
	role := fs.String("role", "admin", "token role")
	ttl := fs.Duration("ttl", 12*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if secret == "" {
		return errors.New("token: -secret or JWT_SECRET is required")
	}

	tok, err := auth.GenerateToken(secret, *subject, *role, *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, tok)
	return nil
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"procurement/internal/app"
	"procurement/internal/core"
)

// Usage lists the one-shot commands.
const Usage = `Usage: app <command> [args]

  next <type>                      allocate the next sequence number
  peek <type>                      show the next sequence number
  reset <type> <n>                 make n the next number (SEQUENCE_RESET_SECRET)
  list <type> [active|history|STATUS]
  show <type> <id>
  transition <type> <id> <status>
  archive <type> <id>
  unarchive <type> <id>
  history <material-id>

<type> is qr, po or so.`

// ErrUsage is returned for missing or malformed arguments.
var ErrUsage = errors.New("invalid arguments")

// Run executes a one-shot CLI command, writing human-readable output to out.
// args is os.Args[1:]; the first element is the subcommand name.
func Run(ctx context.Context, svc app.ApplicationService, actor core.Actor, args []string, out io.Writer) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "next", "peek":
		docType, err := typeArg(args, 1)
		if err != nil {
			return err
		}
		var n int64
		if args[0] == "next" {
			n, err = svc.AllocateSequence(ctx, docType)
		} else {
			n, err = svc.PeekSequence(ctx, docType)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s-%05d\n", docType.Prefix(), n)

	case "reset":
		docType, err := typeArg(args, 1)
		if err != nil {
			return err
		}
		start, err := intArg(args, 2, "start number")
		if err != nil {
			return err
		}
		err = svc.ResetSequence(ctx, app.ResetSequenceRequest{
			Type:        docType,
			StartNumber: int64(start),
			AuthToken:   os.Getenv("SEQUENCE_RESET_SECRET"),
			Actor:       actor,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s sequence reset; next number is %s-%05d\n", docType, docType.Prefix(), start)

	case "list", "ls":
		docType, err := typeArg(args, 1)
		if err != nil {
			return err
		}
		filter := ""
		if len(args) > 2 {
			filter = args[2]
		}
		result, err := svc.ListDocuments(ctx, docType, filter)
		if err != nil {
			return err
		}
		printDocumentList(out, result)

	case "show":
		docType, id, err := docArgs(args)
		if err != nil {
			return err
		}
		result, err := svc.GetDocument(ctx, docType, id)
		if err != nil {
			return err
		}
		printDocument(out, result.Document)

	case "transition":
		docType, id, err := docArgs(args)
		if err != nil {
			return err
		}
		if len(args) < 4 {
			return usageError("missing target status")
		}
		target, err := core.ParseDocumentStatus(args[3])
		if err != nil {
			return err
		}
		result, err := svc.TransitionStatus(ctx, docType, id, target, actor)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s is now %s\n", result.Document.Number(), result.Document.Status)

	case "archive", "unarchive":
		docType, id, err := docArgs(args)
		if err != nil {
			return err
		}
		var result *app.DocumentResult
		if args[0] == "archive" {
			result, err = svc.ArchiveDocument(ctx, docType, id, actor)
		} else {
			result, err = svc.UnarchiveDocument(ctx, docType, id, actor)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s is now %s\n", result.Document.Number(), result.Document.Status)

	case "history":
		materialID, err := intArg(args, 1, "material id")
		if err != nil {
			return err
		}
		result, err := svc.GetPriceHistory(ctx, materialID)
		if err != nil {
			return err
		}
		printPriceHistory(out, result)

	default:
		return usageError("unknown command " + args[0])
	}
	return nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrUsage)
}

func typeArg(args []string, i int) (core.DocumentType, error) {
	if len(args) <= i {
		return "", usageError("missing document type")
	}
	return core.ParseDocumentType(args[i])
}

func intArg(args []string, i int, name string) (int, error) {
	if len(args) <= i {
		return 0, usageError("missing " + name)
	}
	n, err := strconv.Atoi(args[i])
	if err != nil || n <= 0 {
		return 0, usageError(fmt.Sprintf("invalid %s %q", name, args[i]))
	}
	return n, nil
}

func docArgs(args []string) (core.DocumentType, int, error) {
	docType, err := typeArg(args, 1)
	if err != nil {
		return "", 0, err
	}
	id, err := intArg(args, 2, "document id")
	if err != nil {
		return "", 0, err
	}
	return docType, id, nil
}

func printDocumentList(out io.Writer, result *app.DocumentListResult) {
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  %-6s %-10s %-10s %-9s %-8s %-20s\n", "ID", "NUMBER", "STATUS", "SUPPLIER", "CURRENCY", "CREATED")
	fmt.Fprintln(out, strings.Repeat("-", 70))
	for _, d := range result.Documents {
		fmt.Fprintf(out, "  %-6d %-10s %-10s %-9d %-8s %-20s\n",
			d.ID, d.Number(), d.Status, d.SupplierID, d.Currency, d.CreatedAt.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(out, "\n  %d document(s)\n", len(result.Documents))
}

func printDocument(out io.Writer, d *core.Document) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("=", 70))
	fmt.Fprintf(out, "  %s  (%s)\n", d.Number(), d.Status)
	fmt.Fprintf(out, "  Supplier : %d\n", d.SupplierID)
	if d.ExchangeRate != nil {
		fmt.Fprintf(out, "  Currency : %s @ %s\n", d.Currency, d.ExchangeRate.String())
	} else {
		fmt.Fprintf(out, "  Currency : %s\n", d.Currency)
	}
	if d.ServiceOrderID != nil {
		fmt.Fprintf(out, "  Service order : %d\n", *d.ServiceOrderID)
	}
	if d.Notes != nil {
		fmt.Fprintf(out, "  Notes    : %s\n", *d.Notes)
	}
	fmt.Fprintln(out, strings.Repeat("=", 70))
	fmt.Fprintf(out, "  %-3s %-28s %10s %-6s %12s %12s\n", "#", "MATERIAL", "QTY", "UNIT", "PRICE", "TOTAL")
	fmt.Fprintln(out, strings.Repeat("-", 70))
	for _, it := range d.Items {
		fmt.Fprintf(out, "  %-3d %-28s %10s %-6s %12s %12s\n",
			it.Position, it.MaterialName, it.Quantity.String(), it.Unit, it.UnitPrice.StringFixed(2), it.Total().StringFixed(2))
	}
	fmt.Fprintln(out, strings.Repeat("-", 70))
	fmt.Fprintf(out, "  %-62s %s\n", "TOTAL", d.Total().StringFixed(2))
}

func printPriceHistory(out io.Writer, result *app.PriceHistoryResult) {
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  PRICE HISTORY  material %d\n", result.MaterialID)
	fmt.Fprintln(out, strings.Repeat("-", 70))
	fmt.Fprintf(out, "  %-17s %-9s %12s %-4s %-22s\n", "RECORDED", "SUPPLIER", "PRICE", "CUR", "SOURCE")
	for _, e := range result.Entries {
		fmt.Fprintf(out, "  %-17s %-9d %12s %-4s %-22s\n",
			e.RecordedAt.Format("2006-01-02 15:04"), e.SupplierID, e.UnitPrice.StringFixed(2), e.Currency, e.Source())
	}
	if result.Superseded > 0 {
		fmt.Fprintf(out, "\n  %d service order price(s) superseded by linked purchase orders\n", result.Superseded)
	}
}

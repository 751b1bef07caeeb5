package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"mlgrid/cmd"
	"mlgrid/internal/grid"
	"mlgrid/pkg/api"

	"github.com/caarlos0/env/v11"
)

type GridConfig struct {
	BaseURL string `env:"GRID_BASE_URL" envDefault:"http://127.0.0.1:8000"`
}

// stdinConfirmer asks destructive-action questions on the terminal.
type stdinConfirmer struct {
	in *bufio.Scanner
}

func (c *stdinConfirmer) Confirm(prompt string) bool {
	fmt.Printf("%s [y/N] ", prompt)
	if !c.in.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(c.in.Text()))
	return answer == "y" || answer == "yes"
}

func main() {
	cmd.LoadEnvFile()

	var cfg GridConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	in := bufio.NewScanner(os.Stdin)
	session := grid.NewSession(cfg.BaseURL, &stdinConfirmer{in: in})

	ctx := context.Background()
	session.RefreshAll(ctx)

	fmt.Println("dynamic grid client — type 'help' for commands")
	printStatus(session)

	for {
		fmt.Print("> ")
		if !in.Scan() {
			break
		}
		line := strings.TrimSpace(in.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		command, args := fields[0], fields[1:]

		if command == "quit" || command == "exit" {
			break
		}
		runCommand(ctx, session, command, args)
		printStatus(session)
	}
}

func runCommand(ctx context.Context, session *grid.Session, command string, args []string) {
	switch command {
	case "help":
		printHelp()
	case "show":
		printGrid(session)
	case "reload":
		session.RefreshAll(ctx)
	case "set":
		if len(args) < 2 {
			fmt.Println("usage: set <column> <value>")
			return
		}
		session.State.SetNewRowField(args[0], strings.Join(args[1:], " "))
	case "add":
		session.SubmitNewRow(ctx) //nolint:errcheck
	case "edit":
		id, ok := resolveId(session, args)
		if !ok {
			return
		}
		if !session.StartEdit(id) {
			fmt.Println("no such record")
		}
	case "field":
		if len(args) < 2 {
			fmt.Println("usage: field <column> <value>")
			return
		}
		session.State.SetEditField(args[0], strings.Join(args[1:], " "))
	case "save":
		session.SaveEdit(ctx) //nolint:errcheck
	case "cancel":
		session.State.CancelEdit()
	case "del":
		id, ok := resolveId(session, args)
		if !ok {
			return
		}
		session.DeleteRecord(ctx, id) //nolint:errcheck
	case "sel":
		id, ok := resolveId(session, args)
		if !ok {
			return
		}
		session.State.ToggleSelect(id)
	case "selall":
		session.State.ToggleSelectAll(session.Records.Ids())
	case "bulkdel":
		session.BulkDeleteSelected(ctx)
	case "addcol":
		if len(args) != 1 {
			fmt.Println("usage: addcol <name>")
			return
		}
		session.State.StartColumnDraft()
		session.State.SetColumnDraft(args[0])
		session.CommitColumnDraft(ctx) //nolint:errcheck
	case "delcol":
		if len(args) != 1 {
			fmt.Println("usage: delcol <name>")
			return
		}
		session.Columns.DeleteColumn(ctx, args[0]) //nolint:errcheck
	case "newtable":
		if len(args) != 1 {
			fmt.Println("usage: newtable <col1,col2,...>")
			return
		}
		session.CreateTable(ctx, strings.Split(args[0], ",")) //nolint:errcheck
	case "upload":
		if len(args) != 1 {
			fmt.Println("usage: upload <path.csv>")
			return
		}
		file, err := os.Open(args[0])
		if err != nil {
			fmt.Printf("cannot open %s: %v\n", args[0], err)
			return
		}
		defer file.Close()
		session.Upload(ctx, args[0], file) //nolint:errcheck
	case "train":
		session.Models.Train(ctx) //nolint:errcheck
	case "metrics":
		printMetrics(session, args)
	case "predict":
		runPredict(ctx, session, args)
	case "download":
		if len(args) != 1 {
			fmt.Println("usage: download <path.csv>")
			return
		}
		payload, err := session.Download(ctx)
		if err != nil {
			return
		}
		if err := os.WriteFile(args[0], payload, 0644); err != nil {
			fmt.Printf("cannot write %s: %v\n", args[0], err)
			return
		}
		fmt.Printf("wrote %d bytes to %s\n", len(payload), args[0])
	default:
		fmt.Printf("unknown command %q, try 'help'\n", command)
	}
}

func runPredict(ctx context.Context, session *grid.Session, args []string) {
	if len(args) < 1 {
		fmt.Println("usage: predict <model> [col=value ...]")
		return
	}
	modelKey := args[0]

	// One input per feature column, defaulting to empty.
	features := make(map[string]string)
	for _, col := range session.Schema.FeatureColumns() {
		features[col] = ""
	}
	for _, kv := range args[1:] {
		col, val, ok := strings.Cut(kv, "=")
		if !ok {
			fmt.Printf("bad feature %q, expected col=value\n", kv)
			return
		}
		features[col] = val
	}

	if err := session.Models.Predict(ctx, modelKey, features); err != nil {
		return
	}
	if p, ok := session.Models.LastPrediction(); ok {
		fmt.Printf("predicted %s = %.4f (model %s)\n", p.Target, p.Value, p.ModelKey)
	}
}

// resolveId accepts either a record id or a 1-based row number.
func resolveId(session *grid.Session, args []string) (string, bool) {
	if len(args) != 1 {
		fmt.Println("usage: <command> <id|row#>")
		return "", false
	}
	ids := session.Records.Ids()
	if n, err := strconv.Atoi(args[0]); err == nil && n >= 1 && n <= len(ids) {
		return ids[n-1], true
	}
	return args[0], true
}

func printStatus(session *grid.Session) {
	if msg, ok := session.Notifier.Current(); ok {
		fmt.Printf("[%s] %s\n", msg.Severity, msg.Text)
	}
}

func printGrid(session *grid.Session) {
	schema, ok := session.Schema.Current()
	if !ok {
		fmt.Println("no dataset loaded — upload a CSV or create a table to begin")
		return
	}

	fmt.Printf("columns: %s\n", strings.Join(schema.Columns, ", "))
	fmt.Printf("target:  %s   features: %s\n", schema.Target, strings.Join(schema.FeatureColumns, ", "))

	for i, rec := range session.Records.Records() {
		marker := " "
		if session.State.Selected(rec.Id) {
			marker = "*"
		}
		cells := make([]string, len(schema.Columns))
		for j, col := range schema.Columns {
			cells[j] = fmt.Sprintf("%v", rec.Data[col])
		}
		fmt.Printf("%s %3d %s  %s\n", marker, i+1, shortId(rec.Id), strings.Join(cells, " | "))
	}
}

func printMetrics(session *grid.Session, args []string) {
	keys := api.ModelKeys
	if len(args) == 1 {
		keys = []string{args[0]}
	}
	for _, key := range keys {
		m, ok := session.Models.Metrics(key)
		if !ok {
			fmt.Printf("%s: not trained\n", key)
			continue
		}
		fmt.Printf("%s: r2=%.4f mae=%.4f mse=%.4f rmse=%.4f\n", m.Name, m.R2, m.MAE, m.MSE, m.RMSE)
		for col, weight := range m.FeatureImportance {
			fmt.Printf("    %s: %.4f\n", col, weight)
		}
	}
}

func shortId(id string) string {
	if len(id) <= 6 {
		return id
	}
	return id[len(id)-6:]
}

func printHelp() {
	fmt.Println(`commands:
  show                    print schema and records
  reload                  refetch schema and records
  set <col> <value>       fill a new-row field
  add                     submit the new row
  edit <id|row#>          start editing a record
  field <col> <value>     change a field of the active edit
  save | cancel           finish or discard the active edit
  del <id|row#>           delete one record
  sel <id|row#>           toggle selection
  selall                  toggle select-all
  bulkdel                 delete the selected records
  addcol <name>           add a column
  delcol <name>           delete a column (destructive)
  newtable <c1,c2,...>    create an empty table
  upload <path.csv>       upload a dataset
  train                   train the model set
  metrics [model]         show training metrics
  predict <model> [c=v]   predict with a model
  download <path.csv>     save the dataset as CSV
  quit`)
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"

	"leanroom/pkg/leanroom"
)

const version = "0.1.0"

const defaultServerURL = "http://localhost:8000"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: leanroom-cli <command> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  version       Print the CLI version\n")
		fmt.Fprintf(os.Stderr, "  algorithms    List the algorithm catalog\n")
		fmt.Fprintf(os.Stderr, "  submit        Submit a backtest\n")
		fmt.Fprintf(os.Stderr, "  status        Show a backtest job\n")
		fmt.Fprintf(os.Stderr, "  market-data   Show stored candles for a symbol\n")
		fmt.Fprintf(os.Stderr, "\nThe server URL comes from -server or the LEANROOM_SERVER env var.\n")
	}

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("leanroom-cli %s\n", version)

	case "algorithms":
		runAlgorithms(os.Args[2:])

	case "submit":
		runSubmit(os.Args[2:])

	case "status":
		runStatus(os.Args[2:])

	case "market-data":
		runMarketData(os.Args[2:])

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		flag.Usage()
		os.Exit(1)
	}
}

func defaultServer() string {
	if s := os.Getenv("LEANROOM_SERVER"); s != "" {
		return s
	}
	return defaultServerURL
}

// paramFlags collects repeated -param name=value flags.
type paramFlags map[string]any

func (p paramFlags) String() string {
	return fmt.Sprint(map[string]any(p))
}

func (p paramFlags) Set(s string) error {
	name, value, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return fmt.Errorf("want name=value, got %q", s)
	}
	p[name] = value
	return nil
}

func runAlgorithms(args []string) {
	fs := flag.NewFlagSet("algorithms", flag.ExitOnError)
	server := fs.String("server", defaultServer(), "leanroom-server base URL")
	fs.Parse(args)

	client := leanroom.NewClient(*server)
	algos, err := client.Algorithms(context.Background())
	if err != nil {
		log.Fatalf("listing algorithms: %v", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Name", "Symbol", "Timeframe", "Start", "End")
	for _, a := range algos {
		table.Append(a.ID, a.Name, a.DefaultSymbol, a.DefaultTimeframe, a.DefaultStart, a.DefaultEnd)
	}
	table.Render()
}

func runSubmit(args []string) {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	server := fs.String("server", defaultServer(), "leanroom-server base URL")
	algorithm := fs.String("algorithm", "", "algorithm id (required)")
	symbol := fs.String("symbol", "", "ticker to run on (required)")
	timeframe := fs.String("timeframe", "", "timeframe override")
	start := fs.String("start", "", "start date override (YYYY-MM-DD)")
	end := fs.String("end", "", "end date override (YYYY-MM-DD)")
	wait := fs.Bool("wait", false, "poll until the job reaches a terminal state")
	params := make(paramFlags)
	fs.Var(params, "param", "algorithm parameter override, name=value (repeatable)")
	fs.Parse(args)

	if *algorithm == "" {
		fmt.Fprintln(os.Stderr, "submit: -algorithm is required")
		fs.Usage()
		os.Exit(1)
	}
	if strings.TrimSpace(*symbol) == "" {
		fmt.Fprintln(os.Stderr, "submit: -symbol is required")
		fs.Usage()
		os.Exit(1)
	}

	client := leanroom.NewClient(*server)
	ctx := context.Background()

	resp, err := client.Submit(ctx, leanroom.SubmitRequest{
		AlgorithmID: *algorithm,
		Symbol:      *symbol,
		Timeframe:   *timeframe,
		StartDate:   *start,
		EndDate:     *end,
		Parameters:  params,
	})
	if err != nil {
		log.Fatalf("submitting backtest: %v", err)
	}
	fmt.Printf("job %s %s\n", resp.JobID, resp.Status)

	if *wait {
		job, err := client.WaitForTerminal(ctx, resp.JobID)
		if err != nil {
			log.Fatalf("waiting for job: %v", err)
		}
		printJob(job)
	}
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	server := fs.String("server", defaultServer(), "leanroom-server base URL")
	fs.Parse(args)

	jobID := fs.Arg(0)
	if jobID == "" {
		fmt.Fprintln(os.Stderr, "status: job id required")
		os.Exit(1)
	}

	client := leanroom.NewClient(*server)
	job, err := client.Job(context.Background(), jobID)
	if err != nil {
		log.Fatalf("fetching job: %v", err)
	}
	printJob(job)
}

func printJob(job leanroom.Job) {
	fmt.Printf("job %s %s\n", job.ID, job.Status)
	if job.Error != "" {
		fmt.Printf("error: %s\n", job.Error)
	}
	if job.Result == nil {
		return
	}

	res := job.Result
	fmt.Printf("price points %d, equity points %d, trades %d, orders %d\n",
		len(res.PriceSeries), len(res.EquityCurve), len(res.Trades), len(res.Orders))

	m := res.Metrics
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Metric", "Value")
	table.Append("Net Profit", fmt.Sprintf("%.2f", m.NetProfit))
	table.Append("Net Profit %", fmt.Sprintf("%.2f%%", m.NetProfitPercent*100))
	table.Append("Trades", fmt.Sprintf("%d (%d wins)", m.TotalTrades, m.WinningTrades))
	table.Append("Win Rate", fmt.Sprintf("%.1f%%", m.WinRate*100))
	table.Append("Max Drawdown", fmt.Sprintf("%.2f%%", m.MaxDrawdown*100))
	table.Append("Sharpe Ratio", fmt.Sprintf("%.2f", m.SharpeRatio))
	table.Append("Sortino Ratio", fmt.Sprintf("%.2f", m.SortinoRatio))
	table.Render()
}

func runMarketData(args []string) {
	fs := flag.NewFlagSet("market-data", flag.ExitOnError)
	server := fs.String("server", defaultServer(), "leanroom-server base URL")
	symbol := fs.String("symbol", "", "ticker (required)")
	timeframe := fs.String("timeframe", "1D", "timeframe")
	fs.Parse(args)

	if *symbol == "" {
		fmt.Fprintln(os.Stderr, "market-data: -symbol is required")
		fs.Usage()
		os.Exit(1)
	}

	client := leanroom.NewClient(*server)
	data, err := client.MarketData(context.Background(), *symbol, *timeframe)
	if err != nil {
		log.Fatalf("fetching market data: %v", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Time", "Open", "High", "Low", "Close", "Volume")
	for _, c := range data.Candles {
		table.Append(c.Time,
			fmt.Sprintf("%.2f", c.Open),
			fmt.Sprintf("%.2f", c.High),
			fmt.Sprintf("%.2f", c.Low),
			fmt.Sprintf("%.2f", c.Close),
			fmt.Sprintf("%d", c.Volume))
	}
	table.Render()
	fmt.Printf("%d candles for %s %s\n", len(data.Candles), data.Symbol, data.Timeframe)
}

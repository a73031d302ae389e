// Command operator is a terminal operator console: it follows the operator
// room, rings the terminal bell on new orders and accepts queue commands on
// stdin.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"restaurante/internal/config"
	"restaurante/internal/console"
	"restaurante/internal/logger"
	"restaurante/internal/models"
	"restaurante/internal/notify"
	"restaurante/internal/realtime"
)

const help = `commands:
  list                  show the active queue
  archive               show finished orders
  advance <id>          move an order to its next status
  cancel <id> [notes]   cancel an order
  confirm <id>          confirm a pending payment
  reject <id>           reject a pending payment
  quit`

func main() {
	cfg := config.Load()
	if err := logger.Init(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if cfg.ConsoleToken == "" {
		fmt.Fprintln(os.Stderr, "CONSOLE_TOKEN is required (log in through /api/v1/auth/login)")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	toasts := notify.NewToastQueue(cfg.ToastTTL)
	defer toasts.Close()
	printToasts(toasts, os.Stdout)

	bell := notify.NewTerminalBell(os.Stdout)
	dispatcher := notify.NewDispatcher(notify.Options{
		Sounds:          notify.AlertChain(bell, notify.Unsupported{}),
		Center:          notify.Unsupported{},
		Toasts:          toasts,
		NotificationTTL: cfg.NotificationTTL,
		PermissionDelay: cfg.PermissionDelay,
	})
	dispatcher.Start(ctx)

	op := console.NewOperator(console.NewAPIStore(cfg.ConsoleAPIURL, cfg.ConsoleToken), dispatcher)
	if err := op.Load(ctx); err != nil {
		logger.L().Fatalw("failed to load orders", "api", cfg.ConsoleAPIURL, "err", err)
	}

	client := realtime.NewClient(cfg.ConsoleWSURL, realtime.WithBackoff(500*time.Millisecond, cfg.ReconnectMaxDelay))
	client.OnConnectionChange(func(connected bool) {
		if connected {
			fmt.Println("* conectado")
		} else {
			fmt.Println("* desconectado, tentando reconectar...")
		}
	})
	client.OnControl(func(msg realtime.ControlMessage) {
		if msg.Event == realtime.EventError {
			fmt.Printf("* %s: %s\n", msg.Room, msg.Message)
		}
	})
	if err := op.Attach(ctx, client, cfg.ConsoleToken); err != nil {
		logger.L().Fatalw("failed to join operator room", "err", err)
	}
	go func() {
		if err := client.Run(ctx); err != nil {
			logger.Error("realtime client stopped", "err", err)
		}
	}()

	fmt.Println(help)
	printQueue(os.Stdout, op.Active())

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if !run(ctx, op, strings.TrimSpace(line)) {
				return
			}
		}
	}
}

// run executes one command; it returns false on quit.
func run(ctx context.Context, op *console.Operator, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}

	var err error
	switch cmd, args := fields[0], fields[1:]; cmd {
	case "quit", "exit":
		return false
	case "list":
		printQueue(os.Stdout, op.Active())
		return true
	case "archive":
		printQueue(os.Stdout, op.Archived())
		return true
	case "advance", "confirm", "reject", "cancel":
		if len(args) == 0 {
			fmt.Println("missing order id")
			return true
		}
		id, ok := resolveID(op, args[0])
		if !ok {
			fmt.Printf("no order matches %q\n", args[0])
			return true
		}
		switch cmd {
		case "advance":
			_, err = op.Advance(ctx, id)
		case "confirm":
			_, err = op.ConfirmPayment(ctx, id)
		case "reject":
			_, err = op.RejectPayment(ctx, id)
		case "cancel":
			var notes *string
			if len(args) > 1 {
				n := strings.Join(args[1:], " ")
				notes = &n
			}
			_, err = op.Cancel(ctx, id, notes)
		}
	default:
		fmt.Println(help)
		return true
	}

	if err == nil {
		printQueue(os.Stdout, op.Active())
	}
	return true
}

// resolveID accepts a full id or the short id printed in the queue.
func resolveID(op *console.Operator, prefix string) (string, bool) {
	var match string
	for _, o := range op.Orders() {
		if o.ID == prefix {
			return o.ID, true
		}
		if strings.HasPrefix(o.ID, prefix) {
			if match != "" {
				return "", false
			}
			match = o.ID
		}
	}
	return match, match != ""
}

func printQueue(w io.Writer, orders []models.Order) {
	if len(orders) == 0 {
		fmt.Fprintln(w, "(nenhum pedido)")
		return
	}
	for _, o := range orders {
		fmt.Fprintf(w, "%-8s  %-15s  %-10s  %-8s  R$ %-9s  %s\n",
			o.ShortID(),
			o.OrderStatus,
			o.PaymentStatus,
			o.DeliveryType,
			strings.Replace(o.TotalAmount.StringFixed(2), ".", ",", 1),
			o.CustomerName,
		)
	}
}

// printToasts writes every new toast once.
func printToasts(q *notify.ToastQueue, w io.Writer) {
	var (
		mu   sync.Mutex
		last uint64
	)
	q.OnChange(func(active []notify.Toast) {
		mu.Lock()
		defer mu.Unlock()
		for _, t := range active {
			if t.ID <= last {
				continue
			}
			last = t.ID
			marker := "*"
			switch t.Variant {
			case notify.ToastProminent:
				marker = "!!"
			case notify.ToastError:
				marker = "ERRO"
			}
			fmt.Fprintf(w, "%s %s %s\n", marker, t.Title, t.Message)
		}
	})
}

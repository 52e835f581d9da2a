// Command paywatch creates a payment request against a running billing API
// and watches it until it settles or expires.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"companion-billing/internal/config"
	"companion-billing/internal/domain/model"
	"companion-billing/internal/infra/logging"
	"companion-billing/internal/poller"
)

func main() {
	base := flag.String("api", "http://localhost:8080", "billing API base URL")
	subject := flag.String("subject", "subject-1", "subject id")
	kind := flag.String("kind", "boost", "boost | membership | invitation_package")
	tier := flag.String("tier", "STANDARD", "tier code or package name")
	id := flag.String("id", "", "watch an existing request instead of creating one")
	interval := flag.Duration("interval", 3*time.Second, "status poll interval")
	flag.Parse()

	logger := logging.New(config.LogConfig{Level: "warn", Format: "console"}, true)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := poller.NewClient(*base, 10*time.Second)

	var (
		reqID     string
		expiresAt time.Time
	)
	if *id != "" {
		v, err := client.FetchStatus(ctx, *id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "status: %v\n", err)
			os.Exit(1)
		}
		reqID, expiresAt = v.ID, v.ExpiresAt
	} else {
		pr, err := client.CreatePaymentRequest(ctx, *subject, *kind, *tier)
		if err != nil {
			fmt.Fprintf(os.Stderr, "create: %v\n", err)
			os.Exit(1)
		}
		reqID, expiresAt = pr.ID, pr.ExpiresAt
		fmt.Printf("Request  %s\n", pr.ID)
		fmt.Printf("Amount   %d VND\n", pr.Amount)
		fmt.Printf("Transfer to %s %s (%s)\n", pr.AccountInfo.BankCode, pr.AccountInfo.AccountNumber, pr.AccountInfo.AccountName)
		fmt.Printf("Content  %s\n", pr.Code)
		fmt.Printf("QR       %s\n", pr.QRPayload)
		for _, l := range pr.BankDeeplinks {
			fmt.Printf("  %-4s %s\n", l.BankID, l.DeeplinkURL)
		}
	}

	exit := 2
	p := poller.New(client, reqID, expiresAt, poller.Config{Interval: *interval}, poller.Callbacks{
		OnTick: func(rem time.Duration) {
			fmt.Printf("\r⏳ %02d:%02d remaining ", int(rem.Minutes()), int(rem.Seconds())%60)
		},
		OnSettled: func(v model.StatusView) {
			fmt.Printf("\n✅ Payment settled at %s\n", v.SettledAt)
			exit = 0
		},
		OnExpired: func(v model.StatusView) {
			fmt.Printf("\n⌛ %s (status %s)\n", "payment window expired, please retry", v.Status)
			exit = 1
		},
		OnError: func(err error) {
			logger.Warn().Err(err).Msg("status poll failed")
		},
	}, logger)
	p.Start(ctx)
	<-p.Done()
	if ctx.Err() != nil {
		fmt.Println("\ncancelled")
	}
	os.Exit(exit)
}

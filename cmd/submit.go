package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cnergy/cnergy/app"
	"github.com/cnergy/cnergy/config"
	"github.com/cnergy/cnergy/core/model"
	"github.com/cnergy/cnergy/core/wire"
	"github.com/cnergy/cnergy/infra/logger"
)

var (
	submitSide  string
	submitQty   float64
	submitPrice float64
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Inject a test order against an in-process engine",
	RunE:  submitOrder,
}

func init() {
	submitCmd.Flags().StringVar(&submitSide, "side", "buy", "order side: buy or sell")
	submitCmd.Flags().Float64Var(&submitQty, "qty", 1, "quantity in kWh")
	submitCmd.Flags().Float64Var(&submitPrice, "price", 0.06, "limit price in euro/kWh")
	rootCmd.AddCommand(submitCmd)
}

func submitOrder(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Fleet.Enabled = false
	cfg.MQTT.Enabled = false

	side, err := model.ParseSide(submitSide)
	if err != nil {
		return err
	}

	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := svc.Run(runCtx); err != nil {
			logger.New("submit-command").Errorf("service: %v", err)
		}
	}()

	const ref = model.Ref("cli")
	box := svc.Fanout().Register(ref)
	svc.Gateway().Send(ref, wire.NewSubmit(side, submitQty, submitPrice, false))

	deadline, dcancel := context.WithTimeout(ctx, time.Duration(cfg.Market.OrderTTLTicks+2)*cfg.Market.TickInterval())
	defer dcancel()
	for {
		msg, ok := box.Receive(deadline)
		if !ok {
			return nil
		}
		fmt.Println(msg.Encode())
		if msg.Kind == wire.KindReject {
			return nil
		}
	}
}

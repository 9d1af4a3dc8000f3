package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"rider-order-sync/internal/client"
	"rider-order-sync/internal/config"
	"rider-order-sync/internal/logger"
	"rider-order-sync/internal/metrics"
	"rider-order-sync/internal/model"
	"rider-order-sync/internal/push"
	"rider-order-sync/internal/service"
	"rider-order-sync/internal/synchronizer"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type app struct {
	cfg     *config.Config
	backend *client.Client
	auth    *service.AuthService
}

func newApp() *app {
	cfg := config.Load()
	backend := client.New(cfg.BackendURL, client.Paths{
		RiderOrders: cfg.RiderOrdersPath,
		UpdateOrder: cfg.UpdateOrderPath,
		Profile:     cfg.ProfilePath,
		OrderScan:   cfg.OrderScanPath,
		Login:       cfg.LoginPath,
	}, cfg.HTTPTimeout)
	return &app{cfg: cfg, backend: backend, auth: service.NewAuthService(backend, cfg.APIToken)}
}

func (a *app) session(ctx context.Context) (model.Session, *client.Client, error) {
	s, err := a.auth.EstablishSession(ctx, a.cfg.RiderID, a.cfg.RiderToken, a.cfg.RiderEmail, a.cfg.RiderPassword)
	if err != nil {
		return model.Session{}, nil, err
	}
	return s, a.backend.WithToken(s.Token), nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "riderctl",
		Short:         "One-shot rider operations against the delivery backend",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	a := newApp()
	root.AddCommand(
		loginCmd(a),
		ordersCmd(a),
		statusCmd(a),
		scanCmd(a),
		profileCmd(a),
		emitCmd(a),
	)
	return root
}

func loginCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and print RIDER_ID / RIDER_TOKEN for the agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.auth.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "RIDER_ID=%s\nRIDER_TOKEN=%s\n", s.RiderID, s.Token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", os.Getenv("RIDER_EMAIL"), "rider email")
	cmd.Flags().StringVar(&password, "password", os.Getenv("RIDER_PASSWORD"), "rider password")
	return cmd
}

func ordersCmd(a *app) *cobra.Command {
	var (
		view   string
		status string
		search string
		date   string
	)
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Fetch the rider's orders and print a filtered view",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.orderService(cmd.Context())
			if err != nil {
				return err
			}
			if err := svc.Refresh(cmd.Context()); err != nil {
				return err
			}

			var base synchronizer.Filter
			switch view {
			case "home":
				base = synchronizer.HomeFilter
			case "pending":
				base = synchronizer.PendingFilter
			case "delivered":
				base = synchronizer.DeliveredFilter
			case "all", "":
			default:
				return fmt.Errorf("unknown view %q (all, home, pending, delivered)", view)
			}
			f := base.Merge(synchronizer.Filter{Status: model.Status(status), Search: search, Date: date})
			printOrders(cmd, svc.View(f))
			return nil
		},
	}
	cmd.Flags().StringVar(&view, "view", "home", "preset: all, home, pending, delivered")
	cmd.Flags().StringVar(&status, "status", "", "exact status")
	cmd.Flags().StringVarP(&search, "search", "q", "", "tracking id or customer phone substring")
	cmd.Flags().StringVar(&date, "date", "", "assigned date (yyyy-mm-dd or dd/mm/yyyy)")
	return cmd
}

func statusCmd(a *app) *cobra.Command {
	var feedback string
	cmd := &cobra.Command{
		Use:   "status <order-id> <status>",
		Short: "Submit a status change for an order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.orderService(cmd.Context())
			if err != nil {
				return err
			}
			o, err := svc.SubmitStatus(cmd.Context(), args[0], model.Status(args[1]), feedback)
			if err != nil {
				return err
			}
			return printJSON(cmd, o)
		},
	}
	cmd.Flags().StringVar(&feedback, "feedback", "", "required for return, hold and canceled")
	return cmd
}

func scanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scan <tracking-id>",
		Short: "Look up an order by its tracking label",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, backend, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			o, err := service.NewScanService(backend, synchronizer.New()).Scan(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, o)
		},
	}
}

func profileCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show the rider profile and remaining balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, backend, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			r, err := service.NewProfileService(backend, logger.Nop(), s).Load(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, r)
		},
	}
}

func emitCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "emit <rider-id> <event> <json-payload>",
		Short: "Publish a push event to a rider room over Redis (device testing)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := push.DecodePayload(args[1], []byte(args[2])); err != nil {
				return err
			}
			rdb := redis.NewClient(&redis.Options{
				Addr:     a.cfg.RedisAddr,
				Password: a.cfg.RedisPassword,
				DB:       a.cfg.RedisDB,
			})
			defer rdb.Close()
			return push.Publish(cmd.Context(), rdb, args[0], args[1], json.RawMessage(args[2]))
		},
	}
	return cmd
}

func (a *app) orderService(ctx context.Context) (*service.OrderService, error) {
	s, backend, err := a.session(ctx)
	if err != nil {
		return nil, err
	}
	return service.NewOrderService(backend, synchronizer.New(), nil, metrics.New(), logger.Nop(), s), nil
}

func printOrders(cmd *cobra.Command, orders []model.Order) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TRACKING\tSTATUS\tCUSTOMER\tPHONE\tTOWN\tAMOUNT\tDATE")
	for _, o := range orders {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			o.TrackingID, o.Status, o.CustomerName, o.CustomerPhone, o.CustomerTown, o.Amount.StringFixed(2), o.AssignedDate)
	}
	_ = w.Flush()
	fmt.Fprintf(cmd.OutOrStdout(), "%d orders\n", len(orders))
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"givekiosk/billing"
	"givekiosk/catalog"
	"givekiosk/ledger"
	"givekiosk/settings"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func donationsCmd(cfgfile *string) *cobra.Command {
	var since string
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "donations",
		Short: "List donations recorded on this kiosk",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, from, err := openLedger(*cfgfile, since)
			if err != nil {
				return err
			}
			defer l.Close()

			list, err := l.List(cmd.Context(), ledger.Filter{Since: from, Limit: limit})
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(list)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tAMOUNT\tTYPE\tRECEIPT\tORDER\tTRANSACTION")
			for _, d := range list {
				kind := "preset"
				if d.IsCustomAmount {
					kind = "custom"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\t%s\n",
					d.CreatedAt.Local().Format(time.DateTime), d.Amount().StringFixed(2),
					kind, d.ReceiptSent, d.OrderID, d.TransactionID)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "Only donations on or after this date (YYYY-MM-DD)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum donations")
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Output as JSON")

	cmd.AddCommand(&cobra.Command{
		Use:   "totals",
		Short: "Sum the donations recorded on this kiosk",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, from, err := openLedger(*cfgfile, since)
			if err != nil {
				return err
			}
			defer l.Close()

			t, err := l.Totals(cmd.Context(), from)
			if err != nil {
				return err
			}
			fmt.Printf("Donations:     %d\n", t.Count)
			fmt.Printf("Amount:        %s\n", t.Amount.StringFixed(2))
			fmt.Printf("Receipts sent: %d\n", t.ReceiptSent)
			return nil
		},
	})
	return cmd
}

func openLedger(cfgfile, since string) (*ledger.Ledger, time.Time, error) {
	var from time.Time
	if since != "" {
		t, err := time.ParseInLocation(time.DateOnly, since, time.Local)
		if err != nil {
			return nil, from, fmt.Errorf("since must be YYYY-MM-DD: %w", err)
		}
		from = t
	}
	cfg, err := loadConfig(cfgfile)
	if err != nil {
		return nil, from, err
	}
	if cfg.Ledger.Path == "" {
		return nil, from, fmt.Errorf("ledger.path not configured")
	}
	l, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return nil, from, err
	}
	return l, from, nil
}

// backendClients builds the billing client and the organization id from
// the config and the settings file.
func backendClients(cfgfile string) (*Config, *settings.Store, *billing.Client, error) {
	cfg, err := loadConfig(cfgfile)
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := settings.Open(cfg.SettingsFile)
	if err != nil {
		return nil, nil, nil, err
	}
	rt, err := backendTransport(cfg.API)
	if err != nil {
		return nil, nil, nil, err
	}
	client := billing.NewClient(cfg.API.URL, cfg.API.timeout())
	client.SetTransport(rt)
	return cfg, store, client, nil
}

func subscriptionCmd(cfgfile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscription",
		Short: "Show or change the organization's kiosk subscription",
	}

	action := func(use, short string, run func(ctx context.Context, org settings.Organization, c *billing.Client) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				_, store, client, err := backendClients(*cfgfile)
				if err != nil {
					return err
				}
				return run(cmd.Context(), store.Organization(), client)
			},
		}
	}

	cmd.AddCommand(action("status", "Show the subscription", func(ctx context.Context, org settings.Organization, c *billing.Client) error {
		sub, err := c.FetchStatus(ctx, org.ID)
		if err != nil {
			return err
		}
		fmt.Printf("Status:       %s\n", sub.Status)
		fmt.Printf("Plan:         %s\n", sub.PlanType)
		fmt.Printf("Devices:      %d\n", sub.DeviceCount)
		if sub.NextBillingDate != "" {
			fmt.Printf("Next billing: %s\n", sub.NextBillingDate)
		}
		if sub.ServiceEndsDate != "" {
			fmt.Printf("Service ends: %s (%d days)\n", sub.ServiceEndsDate, sub.DaysRemaining)
		}
		fmt.Printf("Usable:       %v\n", sub.Usable())
		return nil
	}))
	cmd.AddCommand(action("checkout", "Print a checkout link to subscribe", func(ctx context.Context, org settings.Organization, c *billing.Client) error {
		sess, err := c.CreateCheckoutSession(ctx, org.ID, org.MerchantEmail)
		if err != nil {
			return err
		}
		fmt.Println(sess.URL)
		return nil
	}))
	cmd.AddCommand(action("portal", "Print a billing portal link", func(ctx context.Context, org settings.Organization, c *billing.Client) error {
		url, err := c.CreatePortalSession(ctx, org.ID)
		if err != nil {
			return err
		}
		fmt.Println(url)
		return nil
	}))
	cmd.AddCommand(action("cancel", "Cancel at the end of the billing period", func(ctx context.Context, org settings.Organization, c *billing.Client) error {
		if err := c.Cancel(ctx, org.ID); err != nil {
			return err
		}
		fmt.Println("Subscription canceled")
		return nil
	}))
	cmd.AddCommand(action("resume", "Resume a canceled or paused subscription", func(ctx context.Context, org settings.Organization, c *billing.Client) error {
		if err := c.Resume(ctx, org.ID); err != nil {
			return err
		}
		fmt.Println("Subscription resumed")
		return nil
	}))
	return cmd
}

// settingsCmd edits the settings file. A running kiosk picks up the change
// on its next settings/reload command.
func settingsCmd(cfgfile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or edit the kiosk settings file",
	}

	openStore := func() (*Config, *settings.Store, error) {
		cfg, err := loadConfig(*cfgfile)
		if err != nil {
			return nil, nil, err
		}
		store, err := settings.Open(cfg.SettingsFile)
		if err != nil {
			return nil, nil, err
		}
		return cfg, store, nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := openStore()
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(store.Get())
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add-preset <amount> [catalog-item-id]",
		Short: "Add a donation preset",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := openStore()
			if err != nil {
				return err
			}
			p := settings.Preset{Amount: strings.TrimPrefix(args[0], "$")}
			if len(args) == 2 {
				p.CatalogItemID = args[1]
			}
			if err := store.AddPreset(p); err != nil {
				return err
			}
			return store.Save()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove-preset <index>",
		Short: "Remove a donation preset, counting from 0",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			i, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("index must be a number")
			}
			_, store, err := openStore()
			if err != nil {
				return err
			}
			if err := store.RemovePreset(i); err != nil {
				return err
			}
			return store.Save()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "sync-catalog",
		Short: "Replace the presets with the organization's catalog items",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := openStore()
			if err != nil {
				return err
			}
			rt, err := backendTransport(cfg.API)
			if err != nil {
				return err
			}
			m := catalog.New(cfg.API.URL, cfg.CatalogFile, &http.Client{Transport: rt, Timeout: cfg.API.timeout()})
			if err := m.Fetch(cmd.Context(), store.Organization().ID); err != nil {
				return err
			}
			if err := m.SyncPresets(store); err != nil {
				return err
			}
			fmt.Printf("%d presets from %d catalog items\n", len(store.Kiosk().Presets), len(m.Items()))
			return store.Save()
		},
	})
	return cmd
}

// signResetCmd prints a signed session/reset payload for this kiosk.
func signResetCmd(cfgfile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sign-reset <operator>",
		Short: "Print a signed remote reset request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgfile)
			if err != nil {
				return err
			}
			req := ResetRequest{
				Operator:  args[0],
				Kiosk:     cfg.ClientID,
				Timestamp: uint64(time.Now().Unix()),
			}
			_, sig, err := signRequest(cfg.ControlSecret, req.Operator, req.Kiosk, req.Timestamp)
			if err != nil {
				return err
			}
			req.Signature = sig
			fmt.Fprintf(os.Stderr, "Publish to kiosk/control/%s/session/reset:\n", cfg.ClientID)
			return printJSON(req)
		},
	}
}

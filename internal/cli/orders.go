package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/Additional-Code/orderdesk/internal/app"
	"github.com/Additional-Code/orderdesk/internal/dto"
	"github.com/Additional-Code/orderdesk/internal/ordersapi"
	"github.com/Additional-Code/orderdesk/internal/presentation/format"
)

// OrderClient is the subset of the order API the CLI drives.
type OrderClient interface {
	ListOrders(ctx context.Context, filters dto.OrderFilters) (*dto.OrdersResponse, error)
	GetOrder(ctx context.Context, id dto.ID) (*dto.Order, error)
	UpdateOrder(ctx context.Context, id dto.ID, patch dto.OrderPatch) (*dto.Order, error)
	CreateOrder(ctx context.Context, order dto.Order) (*dto.Order, error)
}

// clientRunner runs fn against an order API client.
type clientRunner func(ctx context.Context, fn func(context.Context, OrderClient) error) error

func remoteClient(ctx context.Context, fn func(context.Context, OrderClient) error) error {
	var client *ordersapi.Client
	return runWithApp(ctx, fx.Options(app.Client, fx.Populate(&client)), func(ctx context.Context) error {
		return fn(ctx, client)
	})
}

func newOrdersCmd() *cobra.Command {
	return ordersCmd(remoteClient)
}

func ordersCmd(run clientRunner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Inspect and update orders through the store API",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List a page of orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			status, _ := flags.GetString("status")
			orderType, _ := flags.GetString("type")
			customer, _ := flags.GetString("customer")
			search, _ := flags.GetString("search")
			page, _ := flags.GetInt("page")
			size, _ := flags.GetInt("page-size")

			filters := dto.OrderFilters{
				Status:       dto.OrderStatus(status),
				OrderType:    dto.OrderType(orderType),
				CustomerName: customer,
				Search:       search,
				Page:         page,
				PageSize:     size,
			}.Normalize()
			if err := filters.Validate(); err != nil {
				return err
			}

			return run(cmd.Context(), func(ctx context.Context, c OrderClient) error {
				resp, err := c.ListOrders(ctx, filters)
				if err != nil {
					return err
				}
				return printOrders(cmd.OutOrStdout(), resp, time.Local)
			})
		},
	}
	list.Flags().String("status", "", "Filter by status")
	list.Flags().String("type", "", "Filter by order type")
	list.Flags().String("customer", "", "Filter by customer name")
	list.Flags().String("search", "", "Free-text search")
	list.Flags().Int("page", 1, "Page number, starting at 1")
	list.Flags().Int("page-size", dto.DefaultPageSize, "Orders per page")

	get := &cobra.Command{
		Use:   "get [id]",
		Short: "Show one order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), func(ctx context.Context, c OrderClient) error {
				order, err := c.GetOrder(ctx, dto.ID(args[0]))
				if err != nil {
					return err
				}
				return printOrder(cmd.OutOrStdout(), order, time.Local)
			})
		},
	}

	setStatus := &cobra.Command{
		Use:   "set-status [id] [status]",
		Short: "Change an order's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := dto.ParseStatus(args[1])
			if err != nil {
				return err
			}
			return run(cmd.Context(), func(ctx context.Context, c OrderClient) error {
				order, err := c.UpdateOrder(ctx, dto.ID(args[0]), dto.StatusPatch(status))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "order %s is now %s\n", order.ID, format.Label(order.Status))
				return nil
			})
		},
	}

	setNotes := &cobra.Command{
		Use:   "set-notes [id] [notes]",
		Short: "Replace an order's preparation notes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			notes := args[1]
			return run(cmd.Context(), func(ctx context.Context, c OrderClient) error {
				order, err := c.UpdateOrder(ctx, dto.ID(args[0]), dto.OrderPatch{PreparationNotes: &notes})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "order %s notes updated\n", order.ID)
				return nil
			})
		},
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Place a new order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			order, err := orderFromFlags(cmd)
			if err != nil {
				return err
			}
			return run(cmd.Context(), func(ctx context.Context, c OrderClient) error {
				created, err := c.CreateOrder(ctx, order)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created order %s (%s)\n", created.ID, format.Money(created.Total))
				return nil
			})
		},
	}
	create.Flags().String("customer", "", "Customer name")
	create.Flags().String("email", "", "Customer email")
	create.Flags().String("type", string(dto.OrderTypePickup), "Order type")
	create.Flags().StringArray("item", nil, "Line item as name:quantity:price; repeatable")
	create.Flags().String("notes", "", "Preparation notes")
	create.Flags().String("scheduled", "", "Scheduled time, RFC 3339")
	_ = create.MarkFlagRequired("customer")
	_ = create.MarkFlagRequired("item")

	cmd.AddCommand(list, get, setStatus, setNotes, create)
	return cmd
}

func orderFromFlags(cmd *cobra.Command) (dto.Order, error) {
	flags := cmd.Flags()
	customer, _ := flags.GetString("customer")
	email, _ := flags.GetString("email")
	rawType, _ := flags.GetString("type")
	rawItems, _ := flags.GetStringArray("item")
	notes, _ := flags.GetString("notes")
	scheduled, _ := flags.GetString("scheduled")

	orderType, err := dto.ParseOrderType(rawType)
	if err != nil {
		return dto.Order{}, err
	}
	order := dto.Order{
		CustomerName:     strings.TrimSpace(customer),
		CustomerEmail:    strings.TrimSpace(email),
		OrderType:        orderType,
		PreparationNotes: notes,
	}
	if order.CustomerName == "" {
		return dto.Order{}, fmt.Errorf("--customer must not be blank")
	}
	for _, raw := range rawItems {
		item, err := parseItem(raw)
		if err != nil {
			return dto.Order{}, err
		}
		order.Items = append(order.Items, item)
	}
	if scheduled != "" {
		at, err := time.Parse(time.RFC3339, scheduled)
		if err != nil {
			return dto.Order{}, fmt.Errorf("--scheduled: %w", err)
		}
		order.ScheduledFor = &at
	}
	return order, nil
}

// parseItem reads name:quantity:price. The name may itself contain colons.
func parseItem(raw string) (dto.OrderItem, error) {
	parts := strings.Split(raw, ":")
	if len(parts) < 3 {
		return dto.OrderItem{}, fmt.Errorf("item %q: want name:quantity:price", raw)
	}
	name := strings.TrimSpace(strings.Join(parts[:len(parts)-2], ":"))
	qty, err := strconv.Atoi(strings.TrimSpace(parts[len(parts)-2]))
	if err != nil || qty < 1 {
		return dto.OrderItem{}, fmt.Errorf("item %q: quantity must be a positive integer", raw)
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(parts[len(parts)-1]), 64)
	if err != nil || price < 0 {
		return dto.OrderItem{}, fmt.Errorf("item %q: price must be a non-negative number", raw)
	}
	if name == "" {
		return dto.OrderItem{}, fmt.Errorf("item %q: name must not be blank", raw)
	}
	return dto.OrderItem{Name: name, Quantity: qty, Price: price}, nil
}

func printOrders(w io.Writer, resp *dto.OrdersResponse, loc *time.Location) error {
	if len(resp.Orders) == 0 {
		_, err := fmt.Fprintln(w, "No orders found matching your criteria")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCUSTOMER\tTYPE\tSTATUS\tTOTAL\tCREATED")
	for _, o := range resp.Orders {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			o.ID, o.CustomerName, format.Label(o.OrderType), format.Label(o.Status),
			format.Money(o.Total), format.DateTime(o.CreatedAt, loc))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "page %d of %d (%d orders)\n", resp.Page, resp.PageCount(), resp.Total)
	return err
}

func printOrder(w io.Writer, o *dto.Order, loc *time.Location) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\t%s\n", o.ID)
	fmt.Fprintf(tw, "Customer\t%s <%s>\n", o.CustomerName, o.CustomerEmail)
	fmt.Fprintf(tw, "Type\t%s\n", format.Label(o.OrderType))
	fmt.Fprintf(tw, "Status\t%s\n", format.Label(o.Status))
	fmt.Fprintf(tw, "Created\t%s\n", format.DateTime(o.CreatedAt, loc))
	fmt.Fprintf(tw, "Scheduled\t%s\n", format.OptionalDateTime(o.ScheduledFor, loc))
	if o.PreparationNotes != "" {
		fmt.Fprintf(tw, "Notes\t%s\n", o.PreparationNotes)
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "QTY\tITEM\tPRICE\tINSTRUCTIONS")
	for _, it := range o.Items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", it.Quantity, it.Name, format.Money(it.Price), it.SpecialInstructions)
	}
	fmt.Fprintf(tw, "\tTotal\t%s\t\n", format.Money(o.Total))
	if rec := o.Reconcile(); rec.Mismatch() {
		fmt.Fprintf(tw, "\tItems subtotal\t%s\t(differs from total)\n", format.MoneyDecimal(rec.Computed))
	}
	return tw.Flush()
}

package erp

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dhe2en832/erp-next-system-sub000/internal/documents"
	"github.com/dhe2en832/erp-next-system-sub000/internal/fulfillment"
	"github.com/dhe2en832/erp-next-system-sub000/internal/shared"
)

// Gateway adapts Frappe doctypes to domain documents. It is the only place that knows wire field names.
type Gateway struct {
	client *Client
	// FloatPrecision applies to quantities of units that are not whole numbers.
	FloatPrecision int32
}

// NewGateway wraps a client.
func NewGateway(client *Client) *Gateway {
	return &Gateway{client: client, FloatPrecision: 3}
}

// Client exposes the underlying REST client.
func (g *Gateway) Client() *Client { return g.client }

type doctypeSpec struct {
	doctype    string
	itemTable  string
	partyField string
	dateField  string
	isReturn   int
	// upstream link fields on the downstream item row
	upstreamDocField  string
	upstreamLineField string
	upstreamKind      documents.Kind
}

var specs = map[documents.Kind]doctypeSpec{
	documents.KindOrder: {
		doctype: "Sales Order", itemTable: "Sales Order Item",
		partyField: "customer", dateField: "transaction_date",
	},
	documents.KindDelivery: {
		doctype: "Delivery Note", itemTable: "Delivery Note Item",
		partyField: "customer", dateField: "posting_date",
		upstreamDocField: "against_sales_order", upstreamLineField: "so_detail",
		upstreamKind: documents.KindOrder,
	},
	documents.KindReturn: {
		doctype: "Delivery Note", itemTable: "Delivery Note Item",
		partyField: "customer", dateField: "posting_date", isReturn: 1,
		upstreamDocField: "against_delivery_note", upstreamLineField: "dn_detail",
		upstreamKind: documents.KindDelivery,
	},
	documents.KindPurchaseOrder: {
		doctype: "Purchase Order", itemTable: "Purchase Order Item",
		partyField: "supplier", dateField: "transaction_date",
	},
	documents.KindReceipt: {
		doctype: "Purchase Receipt", itemTable: "Purchase Receipt Item",
		partyField: "supplier", dateField: "posting_date",
		upstreamDocField: "purchase_order", upstreamLineField: "purchase_order_item",
		upstreamKind: documents.KindPurchaseOrder,
	},
}

func specFor(kind documents.Kind) (doctypeSpec, error) {
	s, ok := specs[kind]
	if !ok {
		return doctypeSpec{}, fmt.Errorf("erp: no doctype for kind %q", kind)
	}
	return s, nil
}

// ============================================================================
// WIRE SHAPES
// ============================================================================

type wireLine struct {
	Name              string          `json:"name"`
	ItemCode          string          `json:"item_code"`
	ItemName          string          `json:"item_name"`
	Qty               decimal.Decimal `json:"qty"`
	Rate              decimal.Decimal `json:"rate"`
	Amount            decimal.Decimal `json:"amount"`
	Warehouse         string          `json:"warehouse"`
	UOM               string          `json:"uom"`
	DeliveredQty      decimal.Decimal `json:"delivered_qty"`
	ReceivedQty       decimal.Decimal `json:"received_qty"`
	ReturnedQty       decimal.Decimal `json:"returned_qty"`
	AgainstSalesOrder string          `json:"against_sales_order"`
	SODetail          string          `json:"so_detail"`
	DNDetail          string          `json:"dn_detail"`
	PurchaseOrder     string          `json:"purchase_order"`
	PurchaseOrderItem string          `json:"purchase_order_item"`
	ReturnReason      string          `json:"return_reason"`
	ReturnItemNotes   string          `json:"return_item_notes"`
}

type wireDoc struct {
	Name            string     `json:"name"`
	DocStatus       int        `json:"docstatus"`
	Status          string     `json:"status"`
	Company         string     `json:"company"`
	Customer        string     `json:"customer"`
	Supplier        string     `json:"supplier"`
	PostingDate     string     `json:"posting_date"`
	TransactionDate string     `json:"transaction_date"`
	Currency        string     `json:"currency"`
	IsReturn        int        `json:"is_return"`
	ReturnAgainst   string     `json:"return_against"`
	CustomNotes     string     `json:"custom_notes"`
	ReturnNotes     string     `json:"return_notes"`
	Remarks         string     `json:"remarks"`
	DraftKey        string     `json:"custom_draft_key"`
	Discarded       int        `json:"custom_discarded"`
	Items           []wireLine `json:"items"`
}

// statusFromWire maps docstatus plus the workflow status string to the shared lifecycle. A discarded draft
// reads as cancelled.
func statusFromWire(docstatus int, status string, discarded int) documents.Status {
	switch docstatus {
	case 0:
		if discarded == 1 {
			return documents.StatusCancelled
		}
		return documents.StatusDraft
	case 2:
		return documents.StatusCancelled
	}
	switch status {
	case "Completed", "Closed":
		return documents.StatusCompleted
	}
	return documents.StatusSubmitted
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (g *Gateway) toDomain(ctx context.Context, kind documents.Kind, spec doctypeSpec, w wireDoc) (documents.TradeDocument, error) {
	doc := documents.TradeDocument{
		ID:       w.Name,
		Kind:     kind,
		Status:   statusFromWire(w.DocStatus, w.Status, w.Discarded),
		Company:  w.Company,
		Currency: w.Currency,
		Remarks:  w.Remarks,
		DraftKey: w.DraftKey,
		Notes:    w.CustomNotes,
	}
	if kind == documents.KindReturn && w.ReturnNotes != "" {
		doc.Notes = w.ReturnNotes
	}
	if spec.partyField == "supplier" {
		doc.Party = w.Supplier
	} else {
		doc.Party = w.Customer
	}
	if spec.dateField == "transaction_date" {
		doc.PostingDate = parseDate(w.TransactionDate)
	} else {
		doc.PostingDate = parseDate(w.PostingDate)
	}

	precisions, err := g.uomPrecisions(ctx, w.Items)
	if err != nil {
		return documents.TradeDocument{}, err
	}
	for _, wl := range w.Items {
		line := documents.LineItem{
			ID:           wl.Name,
			ItemCode:     wl.ItemCode,
			ItemName:     wl.ItemName,
			Quantity:     wl.Qty.Abs(),
			Rate:         wl.Rate,
			Amount:       wl.Amount.Abs(),
			Warehouse:    wl.Warehouse,
			UOM:          wl.UOM,
			QtyPrecision: precisions[wl.UOM],
			DeliveredQty: wl.DeliveredQty,
			ReturnedQty:  wl.ReturnedQty,
			ReturnReason: documents.ReturnReason(wl.ReturnReason),
			ReturnNotes:  wl.ReturnItemNotes,
		}
		if kind == documents.KindPurchaseOrder {
			line.DeliveredQty = wl.ReceivedQty
		}
		if ref := upstreamFromWire(kind, w, wl); ref != nil {
			line.Upstream = ref
		}
		doc.Lines = append(doc.Lines, line)
	}
	return doc, nil
}

func upstreamFromWire(kind documents.Kind, w wireDoc, wl wireLine) *documents.UpstreamRef {
	switch kind {
	case documents.KindDelivery:
		if wl.SODetail != "" {
			return &documents.UpstreamRef{Kind: documents.KindOrder, DocumentID: wl.AgainstSalesOrder, LineID: wl.SODetail}
		}
	case documents.KindReturn:
		if wl.DNDetail != "" {
			return &documents.UpstreamRef{Kind: documents.KindDelivery, DocumentID: w.ReturnAgainst, LineID: wl.DNDetail}
		}
	case documents.KindReceipt:
		if wl.PurchaseOrderItem != "" {
			return &documents.UpstreamRef{Kind: documents.KindPurchaseOrder, DocumentID: wl.PurchaseOrder, LineID: wl.PurchaseOrderItem}
		}
	}
	return nil
}

// toWire builds the insert/update payload. Quantities are sent as numbers; return quantities are negative.
func toWire(doc documents.TradeDocument, spec doctypeSpec) map[string]any {
	payload := map[string]any{
		"doctype":          spec.doctype,
		"company":          doc.Company,
		spec.partyField:    doc.Party,
		"custom_draft_key": doc.DraftKey,
	}
	if !doc.PostingDate.IsZero() {
		payload[spec.dateField] = doc.PostingDate.Format(time.DateOnly)
		if spec.dateField == "posting_date" {
			payload["set_posting_time"] = 1
		} else if doc.Kind == documents.KindOrder {
			payload["delivery_date"] = doc.PostingDate.Format(time.DateOnly)
		} else if doc.Kind == documents.KindPurchaseOrder {
			payload["schedule_date"] = doc.PostingDate.Format(time.DateOnly)
		}
	}
	if doc.Currency != "" {
		payload["currency"] = doc.Currency
	}
	if doc.Kind == documents.KindReturn {
		payload["is_return"] = 1
		payload["return_notes"] = doc.Notes
		if ups := doc.UpstreamDocuments(); len(ups) > 0 {
			payload["return_against"] = ups[0].DocumentID
		}
	} else {
		payload["custom_notes"] = doc.Notes
	}
	if doc.Remarks != "" {
		payload["remarks"] = doc.Remarks
	}

	items := make([]map[string]any, 0, len(doc.Lines))
	for _, l := range doc.Lines {
		qty := l.Quantity
		if doc.Kind == documents.KindReturn {
			qty = qty.Neg()
		}
		item := map[string]any{
			"item_code": l.ItemCode,
			"qty":       qty.InexactFloat64(),
			"rate":      l.Rate.InexactFloat64(),
		}
		if l.ID != "" {
			item["name"] = l.ID
		}
		if l.ItemName != "" {
			item["item_name"] = l.ItemName
		}
		if l.Warehouse != "" {
			item["warehouse"] = l.Warehouse
		}
		if l.UOM != "" {
			item["uom"] = l.UOM
		}
		if l.IsDerived() {
			switch doc.Kind {
			case documents.KindDelivery:
				item["against_sales_order"] = l.Upstream.DocumentID
				item["so_detail"] = l.Upstream.LineID
			case documents.KindReturn:
				item["against_delivery_note"] = l.Upstream.DocumentID
				item["dn_detail"] = l.Upstream.LineID
				item["return_reason"] = string(l.ReturnReason)
				item["return_item_notes"] = l.ReturnNotes
			case documents.KindReceipt:
				item["purchase_order"] = l.Upstream.DocumentID
				item["purchase_order_item"] = l.Upstream.LineID
			}
		}
		items = append(items, item)
	}
	payload["items"] = items
	return payload
}

// uomPrecisions resolves 0 for whole-number units and FloatPrecision otherwise.
func (g *Gateway) uomPrecisions(ctx context.Context, lines []wireLine) (map[string]int32, error) {
	out := make(map[string]int32)
	var names []string
	for _, l := range lines {
		if l.UOM == "" {
			continue
		}
		if _, ok := out[l.UOM]; !ok {
			out[l.UOM] = g.FloatPrecision
			names = append(names, l.UOM)
		}
	}
	if len(names) == 0 {
		return out, nil
	}
	var rows []struct {
		Name       string `json:"name"`
		WholeUnits int    `json:"must_be_whole_number"`
	}
	err := g.client.ListDocuments(ctx, "UOM", Query{
		Filters: []Filter{In("name", names)},
		Fields:  []string{"name", "must_be_whole_number"},
		Limit:   Unbounded,
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("erp: load uom: %w", err)
	}
	for _, r := range rows {
		if r.WholeUnits == 1 {
			out[r.Name] = 0
		}
	}
	return out, nil
}

// ============================================================================
// DOCUMENT OPERATIONS
// ============================================================================

// Get loads a document of the given kind.
func (g *Gateway) Get(ctx context.Context, kind documents.Kind, id string) (documents.TradeDocument, error) {
	spec, err := specFor(kind)
	if err != nil {
		return documents.TradeDocument{}, err
	}
	var w wireDoc
	if err := g.client.GetDocument(ctx, spec.doctype, id, &w); err != nil {
		return documents.TradeDocument{}, err
	}
	if w.IsReturn != spec.isReturn {
		return documents.TradeDocument{}, fmt.Errorf("%w: %s %s", shared.ErrNotFound, kind, id)
	}
	return g.toDomain(ctx, kind, spec, w)
}

func (g *Gateway) listFilters(spec doctypeSpec, f documents.ListFilter) []Filter {
	filters := []Filter{Eq("company", f.Company)}
	if spec.doctype == "Delivery Note" {
		filters = append(filters, Eq("is_return", spec.isReturn))
	}
	if f.Party != "" {
		filters = append(filters, Eq(spec.partyField, f.Party))
	}
	var docstatus []int
	for _, s := range f.Statuses {
		switch s {
		case documents.StatusDraft:
			docstatus = append(docstatus, 0)
		case documents.StatusSubmitted, documents.StatusCompleted:
			docstatus = append(docstatus, 1)
		case documents.StatusCancelled:
			docstatus = append(docstatus, 2)
		}
	}
	if len(docstatus) == 1 {
		filters = append(filters, Eq("docstatus", docstatus[0]))
	} else if len(docstatus) > 1 {
		filters = append(filters, Filter{"docstatus", "in", docstatus})
	}
	return filters
}

// List returns document headers (without lines) ordered newest first, and the total count.
func (g *Gateway) List(ctx context.Context, kind documents.Kind, f documents.ListFilter) ([]documents.TradeDocument, int, error) {
	spec, err := specFor(kind)
	if err != nil {
		return nil, 0, err
	}
	filters := g.listFilters(spec, f)
	var rows []wireDoc
	err = g.client.ListDocuments(ctx, spec.doctype, Query{
		Filters: filters,
		Fields:  []string{"name", "docstatus", "status", "company", spec.partyField, spec.dateField, "currency", "custom_draft_key", "custom_discarded"},
		Offset:  f.Offset,
		Limit:   f.Limit,
		OrderBy: "creation desc",
	}, &rows)
	if err != nil {
		return nil, 0, err
	}
	total, err := g.client.Count(ctx, spec.doctype, filters)
	if err != nil {
		return nil, 0, err
	}
	out := make([]documents.TradeDocument, 0, len(rows))
	for _, w := range rows {
		w.Items = nil
		doc, err := g.toDomain(ctx, kind, spec, w)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, doc)
	}
	return out, total, nil
}

type downstreamRow struct {
	Name         string          `json:"name"`
	DocStatus    int             `json:"docstatus"`
	Status       string          `json:"status"`
	LineName     string          `json:"line_name"`
	ItemCode     string          `json:"item_code"`
	Qty          decimal.Decimal `json:"line_qty"`
	UpstreamLine string          `json:"upstream_line"`
	Discarded    int             `json:"custom_discarded"`
}

// Downstream lists every line of the given downstream kind that references the upstream document,
// regardless of status. The tracker decides what counts.
func (g *Gateway) Downstream(ctx context.Context, upstreamKind documents.Kind, upstreamID string, downstreamKind documents.Kind) ([]fulfillment.DownstreamLine, error) {
	spec, err := specFor(downstreamKind)
	if err != nil {
		return nil, err
	}
	if spec.upstreamKind != upstreamKind {
		return nil, fmt.Errorf("erp: %s does not derive from %s", downstreamKind, upstreamKind)
	}
	child := "`tab" + spec.itemTable + "`"
	var filters []Filter
	if spec.doctype == "Delivery Note" {
		filters = append(filters, Eq("is_return", spec.isReturn))
	}
	if downstreamKind == documents.KindReturn {
		filters = append(filters, Eq("return_against", upstreamID))
	} else {
		filters = append(filters, ChildEq(spec.itemTable, spec.upstreamDocField, upstreamID))
	}
	var rows []downstreamRow
	err = g.client.ListDocuments(ctx, spec.doctype, Query{
		Filters: filters,
		Fields: []string{
			"name", "docstatus", "status", "custom_discarded",
			child + ".name as line_name",
			child + ".item_code as item_code",
			child + ".qty as line_qty",
			child + "." + spec.upstreamLineField + " as upstream_line",
		},
		Limit: Unbounded,
	}, &rows)
	if err != nil {
		return nil, err
	}
	out := make([]fulfillment.DownstreamLine, 0, len(rows))
	for _, r := range rows {
		if r.UpstreamLine == "" {
			continue
		}
		out = append(out, fulfillment.DownstreamLine{
			DocumentID: r.Name,
			Status:     statusFromWire(r.DocStatus, r.Status, r.Discarded),
			Line: documents.LineItem{
				ID:       r.LineName,
				ItemCode: r.ItemCode,
				Quantity: r.Qty.Abs(),
				Upstream: &documents.UpstreamRef{Kind: upstreamKind, DocumentID: upstreamID, LineID: r.UpstreamLine},
			},
		})
	}
	return out, nil
}

// FindByDraftKey looks up a non-cancelled document created from the draft key.
func (g *Gateway) FindByDraftKey(ctx context.Context, kind documents.Kind, key string) (documents.TradeDocument, bool, error) {
	spec, err := specFor(kind)
	if err != nil {
		return documents.TradeDocument{}, false, err
	}
	var rows []struct {
		Name string `json:"name"`
	}
	err = g.client.ListDocuments(ctx, spec.doctype, Query{
		Filters: []Filter{Eq("custom_draft_key", key), {"docstatus", "<", 2}, Eq("custom_discarded", 0)},
		Fields:  []string{"name"},
		Limit:   1,
	}, &rows)
	if err != nil {
		return documents.TradeDocument{}, false, err
	}
	if len(rows) == 0 {
		return documents.TradeDocument{}, false, nil
	}
	doc, err := g.Get(ctx, kind, rows[0].Name)
	if err != nil {
		return documents.TradeDocument{}, false, err
	}
	return doc, true, nil
}

// Create inserts a draft document.
func (g *Gateway) Create(ctx context.Context, doc documents.TradeDocument) (documents.TradeDocument, error) {
	spec, err := specFor(doc.Kind)
	if err != nil {
		return documents.TradeDocument{}, err
	}
	var w wireDoc
	if err := g.client.Insert(ctx, spec.doctype, toWire(doc, spec), &w); err != nil {
		return documents.TradeDocument{}, err
	}
	return g.toDomain(ctx, doc.Kind, spec, w)
}

// Replace overwrites a draft document's header and lines.
func (g *Gateway) Replace(ctx context.Context, doc documents.TradeDocument) (documents.TradeDocument, error) {
	spec, err := specFor(doc.Kind)
	if err != nil {
		return documents.TradeDocument{}, err
	}
	var w wireDoc
	if err := g.client.Update(ctx, spec.doctype, doc.ID, toWire(doc, spec), &w); err != nil {
		return documents.TradeDocument{}, err
	}
	return g.toDomain(ctx, doc.Kind, spec, w)
}

// PatchHeader writes the given header fields only.
func (g *Gateway) PatchHeader(ctx context.Context, doc documents.TradeDocument, fields []string) error {
	spec, err := specFor(doc.Kind)
	if err != nil {
		return err
	}
	patch := make(map[string]any, len(fields))
	for _, f := range fields {
		switch f {
		case documents.FieldNotes:
			if doc.Kind == documents.KindReturn {
				patch["return_notes"] = doc.Notes
			} else {
				patch["custom_notes"] = doc.Notes
			}
		case documents.FieldRemarks:
			patch["remarks"] = doc.Remarks
		case documents.FieldParty:
			patch[spec.partyField] = doc.Party
		case documents.FieldPostingDate:
			patch[spec.dateField] = doc.PostingDate.Format(time.DateOnly)
		case documents.FieldCurrency:
			patch["currency"] = doc.Currency
		}
	}
	return g.client.Update(ctx, spec.doctype, doc.ID, patch, nil)
}

// Submit submits a document.
func (g *Gateway) Submit(ctx context.Context, kind documents.Kind, id string) error {
	spec, err := specFor(kind)
	if err != nil {
		return err
	}
	return g.client.Submit(ctx, spec.doctype, id)
}

// Cancel cancels a submitted document.
func (g *Gateway) Cancel(ctx context.Context, kind documents.Kind, id string) error {
	spec, err := specFor(kind)
	if err != nil {
		return err
	}
	return g.client.Cancel(ctx, spec.doctype, id)
}

// Discard flags a draft as discarded. Frappe cannot cancel a draft and documents are never deleted.
func (g *Gateway) Discard(ctx context.Context, kind documents.Kind, id string) error {
	spec, err := specFor(kind)
	if err != nil {
		return err
	}
	return g.client.Update(ctx, spec.doctype, id, map[string]any{"custom_discarded": 1}, nil)
}

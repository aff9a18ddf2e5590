package mcp

import (
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

type refreshOrdersInput struct {
	From    string `json:"from,omitempty" jsonschema:"First day to fetch (YYYY-MM-DD). Defaults to the day of the newest cached order."`
	To      string `json:"to,omitempty" jsonschema:"Last day to fetch (YYYY-MM-DD). Default: today."`
	Replace bool   `json:"replace,omitempty" jsonschema:"Drop cached orders before storing the fetched ones."`
}

type ordersSummaryInput struct{}

type recommendInput struct {
	Supplier      string  `json:"supplier,omitempty" jsonschema:"Only recommendations for this supplier."`
	Warehouse     string  `json:"warehouse,omitempty" jsonschema:"Only recommendations for this warehouse."`
	MinConfidence float64 `json:"min_confidence,omitempty" jsonschema:"Drop recommendations below this confidence (0-1)."`
	From          string  `json:"from,omitempty" jsonschema:"Only use orders placed on or after this day (YYYY-MM-DD)."`
	To            string  `json:"to,omitempty" jsonschema:"Only use orders placed on or before this day (YYYY-MM-DD)."`
	Limit         int     `json:"limit,omitempty" jsonschema:"Maximum number of recommendations to return. Default: 50."`
}

type exportInput struct {
	Path string `json:"path,omitempty" jsonschema:"Target .xlsx path. Default: exports/recommendations_<date>.xlsx under DATA_PATH."`
}

type predictInput struct {
	Supplier    string `json:"supplier" jsonschema:"Supplier name as in the CRM report."`
	Warehouse   string `json:"warehouse" jsonschema:"Warehouse name as in the CRM report."`
	PickupPoint string `json:"pickup_point,omitempty" jsonschema:"Pickup point; empty means any."`
	Weekday     int    `json:"weekday" jsonschema:"Order weekday, 1 = Monday through 7 = Sunday."`
	Hour        int    `json:"hour" jsonschema:"Order hour of day (0-23)."`
}

type supplierInput struct {
	Supplier    string `json:"supplier" jsonschema:"Supplier name as in the CRM report."`
	Warehouse   string `json:"warehouse" jsonschema:"Warehouse name as in the CRM report."`
	PickupPoint string `json:"pickup_point,omitempty" jsonschema:"Restrict to one pickup point."`
}

type trendInput struct {
	Supplier    string  `json:"supplier" jsonschema:"Supplier name as in the CRM report."`
	Warehouse   string  `json:"warehouse" jsonschema:"Warehouse name as in the CRM report."`
	PickupPoint string  `json:"pickup_point,omitempty" jsonschema:"Restrict to one pickup point."`
	Weekday     int     `json:"weekday" jsonschema:"Order weekday, 1 = Monday through 7 = Sunday."`
	Hour        *int    `json:"hour,omitempty" jsonschema:"Order hour of day (0-23). Omit for the whole day."`
	Threshold   float64 `json:"changepoint_threshold,omitempty" jsonschema:"Changepoint sensitivity in standard deviations. Default: 2."`
}

type scheduleInput struct {
	Warehouse string `json:"warehouse,omitempty" jsonschema:"Case-insensitive warehouse name fragment."`
	Weekday   int    `json:"weekday,omitempty" jsonschema:"Only this weekday (1-7)."`
}

type setWindowInput struct {
	Warehouse    string `json:"warehouse" jsonschema:"Warehouse name."`
	PickupPoint  string `json:"pickup_point,omitempty" jsonschema:"Pickup point; empty for a warehouse-wide window."`
	Weekday      int    `json:"weekday" jsonschema:"1 = Monday through 7 = Sunday."`
	OrderBy      string `json:"order_by" jsonschema:"Order cutoff (HH:MM)."`
	Duration     int    `json:"duration" jsonschema:"Minutes from cutoff to delivery."`
	DeliveryType string `json:"delivery_type,omitempty" jsonschema:"self or courier. Default: self."`
}

type historyInput struct {
	Warehouse   string `json:"warehouse" jsonschema:"Warehouse name."`
	PickupPoint string `json:"pickup_point,omitempty" jsonschema:"Pickup point; empty for warehouse-wide windows."`
}

type importScheduleInput struct {
	Path string `json:"path" jsonschema:"Path to a CRM schedule JSON export."`
}

type orderURLInput struct {
	OrderID string `json:"order_id" jsonschema:"CRM order number."`
}

func (s *Server) registerTools(server *sdk.Server) {
	addTool(server, "refresh_orders",
		"Download the CRM delivery statistics report for a date range (in 14-day chunks) and merge it into the local order cache. "+
			"Run this before any analysis when the cache is empty or stale.",
		s.handleRefreshOrders)
	addTool(server, "orders_summary",
		"Show how many orders are cached, their date range and when the cache was last written.",
		s.handleOrdersSummary)

	addTool(server, "generate_recommendations",
		"Compare the recent and older median delivery deviation per supplier, warehouse, pickup point, weekday and order window "+
			"and recommend schedule corrections. Orders are grouped by the declared delivery schedule when one exists, by order hour otherwise. "+
			"Results are sorted by confidence.",
		s.handleGenerateRecommendations)
	addTool(server, "export_recommendations",
		"Write the last generated recommendations (or a fresh run) to an Excel workbook.",
		s.handleExportRecommendations)

	addTool(server, "predict_delivery",
		"Predict the delivery deviation in minutes for a supplier slot using the per-supplier gradient boosting model. "+
			"Trains the models on first use.",
		s.handlePredictDelivery)
	addTool(server, "feature_importance",
		"List which features drive the delivery model of a supplier, warehouse and pickup point.",
		s.handleFeatureImportance)
	addTool(server, "analyze_supplier",
		"Break down the delivery deviations of a supplier at a warehouse by weekday, order hour and pickup point. "+
			"Includes a process stability check and a Mermaid chart of median deviation per weekday.",
		s.handleAnalyzeSupplier)
	addTool(server, "pickup_point_stats",
		"Rank the pickup points of a supplier at a warehouse by on-time share.",
		s.handlePickupPointStats)
	addTool(server, "detect_trend",
		"Classify the deviation trend of one weekday (and optionally one order hour), locate abrupt changes "+
			"and chart the deviations against their natural process limits.",
		s.handleDetectTrend)

	addTool(server, "get_schedule",
		"List declared delivery schedule windows, optionally filtered by warehouse and weekday.",
		s.handleGetSchedule)
	addTool(server, "set_schedule_window",
		"Create or update one schedule window. Every change is recorded in the schedule history.",
		s.handleSetScheduleWindow)
	addTool(server, "schedule_history",
		"Show the change history of the schedule windows of a warehouse and pickup point, newest first.",
		s.handleScheduleHistory)
	addTool(server, "import_schedule",
		"Import a CRM schedule JSON export into the schedule store.",
		s.handleImportSchedule)

	addTool(server, "order_url",
		"Return the CRM web page of an order.",
		s.handleOrderURL)
}

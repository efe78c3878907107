package export

// Dataset defines tabular export content. Rows map header name to the cell
// value so renderers can emit columns in header order.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

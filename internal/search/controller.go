package search

import "github.com/starford/atlas/internal/site"

// State is the lifecycle stage of a Controller.
type State int

const (
	// StateNotLoaded: no dataset yet; inputs disabled and the search bar hidden.
	StateNotLoaded State = iota
	// StateLoaded: dataset present, inputs enabled, nothing rendered.
	StateLoaded
	// StateActive: results are rendered.
	StateActive
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateActive:
		return "active"
	}
	return "not-loaded"
}

// Key identifies the key released in a key-up event.
type Key int

const (
	KeyOther Key = iota
	KeyEnter
)

// View is the results display a Controller drives.
type View interface {
	// SetEnabled enables the inputs and shows the search bar.
	SetEnabled(enabled bool)
	// SetQuery fills the inputs with q.
	SetQuery(q Query)
	// Render replaces the results area with prefix (if any) followed by
	// matches, or an explicit "None" when matches is empty.
	Render(prefix *Link, matches []Match)
	// Clear empties the results area.
	Clear()
	// ScrollTop scrolls the results area to its start.
	ScrollTop()
}

// Navigator leaves the search for a chart page.
type Navigator interface {
	Navigate(href string)
}

// Controller owns one search widget: its dataset, current query and
// candidate list. It is not safe for concurrent use; all handlers must be
// called from the goroutine that owns the view.
type Controller struct {
	layout Layout
	view   View
	nav    Navigator

	state    State
	dataset  *site.Dataset
	query    Query
	result   *Result
	fragment string
}

// NewController creates a controller in StateNotLoaded and disables view.
func NewController(layout Layout, view View, nav Navigator) *Controller {
	c := &Controller{layout: layout, view: view, nav: nav}
	view.SetEnabled(false)
	return c
}

// State returns the current lifecycle stage.
func (c *Controller) State() State { return c.state }

// Query returns the current query.
func (c *Controller) Query() Query { return c.query }

// Result returns the last evaluation result, or nil.
func (c *Controller) Result() *Result { return c.result }

// Fragment returns the URL fragment of the current query, without "#".
func (c *Controller) Fragment() string { return c.fragment }

// OnDatasetLoaded installs ds, enables the view and restores the query from
// the last known fragment.
func (c *Controller) OnDatasetLoaded(ds *site.Dataset) {
	c.dataset = ds
	c.state = StateLoaded
	c.view.SetEnabled(true)
	c.restore()
}

// OnFragmentChanged records a new URL fragment and, once the dataset is
// loaded, restores the query it encodes.
func (c *Controller) OnFragmentChanged(fragment string) {
	c.fragment = trimHash(fragment)
	if c.state == StateNotLoaded {
		return
	}
	c.restore()
}

// OnKeyUp takes the current input values. Enter submits; any other key
// re-evaluates the query.
func (c *Controller) OnKeyUp(key Key, q Query) {
	if c.state == StateNotLoaded {
		return
	}
	if key == KeyEnter {
		c.OnSubmit()
		return
	}
	c.query = c.layout.Normalize(q)
	c.evaluate()
}

// OnSubmit navigates to the first candidate, if any. It never re-evaluates.
func (c *Controller) OnSubmit() (href string, ok bool) {
	href, ok = Submit(c.result)
	if ok && c.nav != nil {
		c.nav.Navigate(href)
	}
	return href, ok
}

func (c *Controller) restore() {
	c.query = ParseFragment(c.fragment, c.layout)
	c.view.SetQuery(c.query)
	c.evaluate()
}

func (c *Controller) evaluate() {
	c.result = Evaluate(c.dataset, c.query)
	c.fragment = EncodeFragment(c.query, c.layout)

	if c.result.Mode == ModeNone {
		c.view.Clear()
		c.state = StateLoaded
	} else {
		c.view.Render(c.result.Prefix, c.result.Matches)
		c.state = StateActive
	}
	c.view.ScrollTop()
}

func trimHash(s string) string {
	if len(s) > 0 && s[0] == '#' {
		return s[1:]
	}
	return s
}

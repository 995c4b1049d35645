package drawer

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/template"
	"time"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"
	"gopkg.in/go-playground/colors.v1" //nolint

	"github.com/ufal/udpipe/internal/store"
	"github.com/ufal/udpipe/pkg/stream/measure"
)

// DOTDrawer writes the flow graph in the DOT language.
type DOTDrawer struct {
	graph    graph.Graph[string, string]
	store    store.CustomStore[string, string]
	fileName string
	output   io.Writer
}

func newDOTDrawer() *DOTDrawer {
	st := store.NewMemoryStore[string, string]()

	return &DOTDrawer{
		graph: graph.NewWithStore(graph.StringHash, graph.Store[string, string](st), graph.Directed()),
		store: st,
	}
}

// NewDOTDrawer creates a drawer writing to fileName.
func NewDOTDrawer(fileName string) *DOTDrawer {
	d := newDOTDrawer()
	d.fileName = fileName

	return d
}

// NewDOTWriterDrawer creates a drawer writing to w.
func NewDOTWriterDrawer(w io.Writer) *DOTDrawer {
	d := newDOTDrawer()
	d.output = w

	return d
}

// AddStep adds a step to the flow graph.
func (d *DOTDrawer) AddStep(name string) error {
	err := d.graph.AddVertex(name)
	if err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
		return errors.Wrap(err, "unable to add vertex")
	}

	return nil
}

// AddLink adds a link between parent and child steps.
func (d *DOTDrawer) AddLink(parentName, childName string) error {
	err := d.graph.AddEdge(parentName, childName)
	if err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
		return errors.Wrapf(err, "unable to add edge from %s to %s", parentName, childName)
	}

	return nil
}

// Draw writes the flow graph.
func (d *DOTDrawer) Draw() error {
	if d.output != nil {
		return dot(d.graph, d.output)
	}

	file, err := os.Create(d.fileName)
	if err != nil {
		return errors.Wrapf(err, "unable to create file %s", d.fileName)
	}
	defer file.Close()

	err = dot(d.graph, file)
	if err != nil {
		return errors.Wrapf(err, "unable to write dot file %s", d.fileName)
	}

	return errors.Wrapf(file.Close(), "unable to close %s", d.fileName)
}

// SetTotalTime labels the step with the time elapsed since startTime.
func (d *DOTDrawer) SetTotalTime(stepName string, startTime time.Time) error {
	err := d.store.UpdateVertex(stepName, graph.VertexAttribute("xlabel", time.Since(startTime).Round(time.Microsecond).String()))
	if err != nil {
		return errors.Wrapf(err, "unable to label %s", stepName)
	}

	return nil
}

const maxRGB = 240

// edgeColours maps every distinct waiting time to a colour from blue (shortest) to red (longest).
func edgeColours(msr measure.Measure) (map[time.Duration]string, error) {
	colours := make(map[time.Duration]string)
	sorted := []time.Duration{}

	for _, step := range msr.AllMetrics() {
		for _, elapsed := range step.AVGTransportDuration() {
			if elapsed == 0 {
				continue
			}
			if _, ok := colours[elapsed]; ok {
				continue
			}
			colours[elapsed] = ""
			sorted = append(sorted, elapsed)
		}
	}
	if len(sorted) == 0 {
		return colours, nil
	}

	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] > sorted[j]
	})
	maxValue := sorted[0]
	minValue := sorted[len(sorted)-1]

	for curr := range colours {
		fraction := 1.0
		if maxValue > minValue {
			fraction = float64(curr-minValue) / float64(maxValue-minValue)
		}

		red := maxRGB * fraction
		blue := maxRGB - maxRGB*fraction

		colour, err := colors.RGB(uint8(red), 0, uint8(blue)) //nolint
		if err != nil {
			return nil, errors.Wrap(err, "unable to get colour")
		}
		colours[curr] = colour.ToHEX().String()
	}

	return colours, nil
}

// AddMeasure labels steps with their average duration and links with their waiting time.
func (d *DOTDrawer) AddMeasure(msr measure.Measure) error {
	colours, err := edgeColours(msr)
	if err != nil {
		return err
	}

	for name, step := range msr.AllMetrics() {
		label := ""
		if avg := step.AVGDuration(); avg != 0 {
			label = fmt.Sprintf("%d x %s", step.Count(), avg)
		}
		if end := step.EndDuration(); end > 0 {
			if label != "" {
				label += ", "
			}
			label += "end: " + end.String()
		}
		if label != "" {
			err := d.store.UpdateVertex(name, graph.VertexAttribute("xlabel", label))
			if err != nil && !errors.Is(err, graph.ErrVertexNotFound) {
				return errors.Wrap(err, "unable to label vertex")
			}
		}

		for inputStep, elapsed := range step.AVGTransportDuration() {
			if elapsed == 0 {
				continue
			}

			err := d.graph.UpdateEdge(inputStep, name,
				graph.EdgeAttribute("label", elapsed.String()),
				graph.EdgeAttribute("fontcolor", "blue"),
				graph.EdgeAttribute("color", colours[elapsed]), //nolint
			)
			if err != nil && !errors.Is(err, graph.ErrEdgeNotFound) {
				return errors.Wrap(err, "unable to update edge")
			}
		}
	}

	return nil
}

//nolint:lll //this is a template
const dotTemplate = `strict {{.GraphType}} {
{{range $k, $v := .Attributes}}	{{$k}}="{{$v}}";
{{end}}{{range $s := .Statements}}	"{{.Source}}" {{if .Target}}{{$.EdgeOperator}} "{{.Target}}" [ {{range $k, $v := .EdgeAttributes}}{{$k}}="{{$v}}", {{end}}weight={{.EdgeWeight}} ]{{else}}[ {{range $k, $v := .HTMLAttributes}}{{$k}}={{$v}}, {{end}}{{range $k, $v := .SourceAttributes}}{{$k}}="{{$v}}", {{end}}weight={{.SourceWeight}} ]{{end}};
{{end}}}
`

type description struct {
	GraphType    string
	Attributes   map[string]string
	EdgeOperator string
	Statements   []statement
}

type statement struct {
	Source           interface{}
	Target           interface{}
	SourceAttributes map[string]string
	HTMLAttributes   map[string]string
	EdgeAttributes   map[string]string
	SourceWeight     int
	EdgeWeight       int
}

func dot[K comparable, T any](g graph.Graph[K, T], wrt io.Writer, options ...func(*description)) error {
	desc, err := generateDOT(g, options...)
	if err != nil {
		return errors.Wrap(err, "failed to generate DOT description")
	}

	return renderDOT(wrt, desc)
}

// GraphAttribute sets a graph level attribute.
func GraphAttribute(key, value string) func(*description) {
	return func(d *description) {
		d.Attributes[key] = value
	}
}

func generateDOT[K comparable, T any](gra graph.Graph[K, T], options ...func(*description)) (description, error) {
	desc := description{
		GraphType:    "graph",
		Attributes:   map[string]string{"rankdir": "LR"},
		EdgeOperator: "--",
		Statements:   make([]statement, 0),
	}

	for _, option := range options {
		option(&desc)
	}

	if gra.Traits().IsDirected {
		desc.GraphType = "digraph"
		desc.EdgeOperator = "->"
	}

	order, err := graph.StableTopologicalSort(gra, func(a, b K) bool {
		return fmt.Sprint(a) < fmt.Sprint(b)
	})
	if err != nil {
		return desc, errors.Wrap(err, "unable to order vertices")
	}

	adjacencyMap, err := gra.AdjacencyMap()
	if err != nil {
		return desc, errors.Wrap(err, "unable to get adjacency map")
	}

	for _, vertex := range order {
		_, sourceProperties, err := gra.VertexWithProperties(vertex)
		if err != nil {
			return desc, errors.Wrap(err, "unable to get vertex properties")
		}

		htmlAttributes := make(map[string]string)
		sourceAttributes := make(map[string]string, len(sourceProperties.Attributes))
		for k, v := range sourceProperties.Attributes {
			sourceAttributes[k] = v
		}
		if xlabel, ok := sourceAttributes["xlabel"]; ok {
			htmlAttributes["label"] = fmt.Sprintf(`<%+v <BR /> <FONT POINT-SIZE="12">%s</FONT>>`, vertex, xlabel)

			delete(sourceAttributes, "xlabel")
		}

		desc.Statements = append(desc.Statements, statement{
			Source:           vertex,
			SourceWeight:     sourceProperties.Weight,
			SourceAttributes: sourceAttributes,
			HTMLAttributes:   htmlAttributes,
		})

		targets := make([]K, 0, len(adjacencyMap[vertex]))
		for target := range adjacencyMap[vertex] {
			targets = append(targets, target)
		}
		sort.Slice(targets, func(i, j int) bool {
			return fmt.Sprint(targets[i]) < fmt.Sprint(targets[j])
		})
		for _, target := range targets {
			edge := adjacencyMap[vertex][target]
			desc.Statements = append(desc.Statements, statement{
				Source:         vertex,
				Target:         target,
				EdgeWeight:     edge.Properties.Weight,
				EdgeAttributes: edge.Properties.Attributes,
			})
		}
	}

	return desc, nil
}

func renderDOT(wrt io.Writer, desc description) error {
	tpl, err := template.New("dotTemplate").Parse(dotTemplate)
	if err != nil {
		return errors.Wrap(err, "failed to parse template")
	}

	err = tpl.Execute(wrt, desc)
	if err != nil {
		return errors.Wrap(err, "unable to execute template")
	}

	return nil
}

var _ Drawer = (*DOTDrawer)(nil)

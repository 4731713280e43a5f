// Package classes holds the label table the plant-disease classifier was
// trained against. Output index i of the network always maps to entry i.
package classes

import "fmt"

// plantVillage is the 38-label ordering the shipped weights were produced with.
var plantVillage = [...]string{
	"Apple___Apple_scab",
	"Apple___Black_rot",
	"Apple___Cedar_apple_rust",
	"Apple___healthy",
	"Blueberry___healthy",
	"Cherry_(including_sour)___Powdery_mildew",
	"Cherry_(including_sour)___healthy",
	"Corn_(maize)___Cercospora_leaf_spot Gray_leaf_spot",
	"Corn_(maize)___Common_rust_",
	"Corn_(maize)___Northern_Leaf_Blight",
	"Corn_(maize)___healthy",
	"Grape___Black_rot",
	"Grape___Esca_(Black_Measles)",
	"Grape___Leaf_blight_(Isariopsis_Leaf_Spot)",
	"Grape___healthy",
	"Orange___Haunglongbing_(Citrus_greening)",
	"Peach___Bacterial_spot",
	"Peach___healthy",
	"Pepper,_bell___Bacterial_spot",
	"Pepper,_bell___healthy",
	"Potato___Early_blight",
	"Potato___Late_blight",
	"Potato___healthy",
	"Raspberry___healthy",
	"Soybean___healthy",
	"Squash___Powdery_mildew",
	"Strawberry___Leaf_scorch",
	"Strawberry___healthy",
	"Tomato___Bacterial_spot",
	"Tomato___Early_blight",
	"Tomato___Late_blight",
	"Tomato___Leaf_Mold",
	"Tomato___Septoria_leaf_spot",
	"Tomato___Spider_mites Two-spotted_spider_mite",
	"Tomato___Target_Spot",
	"Tomato___Tomato_Yellow_Leaf_Curl_Virus",
	"Tomato___Tomato_mosaic_virus",
	"Tomato___healthy",
}

// Table is an immutable ordered list of class labels.
type Table struct {
	labels []string
	index  map[string]int
}

// New builds a table from labels. Labels must be non-empty and unique.
func New(labels []string) (Table, error) {
	if len(labels) == 0 {
		return Table{}, fmt.Errorf("class table is empty")
	}
	t := Table{
		labels: make([]string, len(labels)),
		index:  make(map[string]int, len(labels)),
	}
	for i, l := range labels {
		if l == "" {
			return Table{}, fmt.Errorf("class %d has an empty label", i)
		}
		if j, dup := t.index[l]; dup {
			return Table{}, fmt.Errorf("class %q appears at %d and %d", l, j, i)
		}
		t.labels[i] = l
		t.index[l] = i
	}
	return t, nil
}

// Default returns the 38-class PlantVillage table.
func Default() Table {
	t, err := New(plantVillage[:])
	if err != nil {
		panic(err)
	}
	return t
}

// Len returns the number of classes.
func (t Table) Len() int { return len(t.labels) }

// Label maps an output index to its label.
func (t Table) Label(i int) (string, error) {
	if i < 0 || i >= len(t.labels) {
		return "", fmt.Errorf("class index %d out of range [0,%d)", i, len(t.labels))
	}
	return t.labels[i], nil
}

// Index returns the output index of label.
func (t Table) Index(label string) (int, bool) {
	i, ok := t.index[label]
	return i, ok
}

// Contains reports whether label is in the table.
func (t Table) Contains(label string) bool {
	_, ok := t.index[label]
	return ok
}

// Labels returns a copy of the labels in output order.
func (t Table) Labels() []string {
	out := make([]string, len(t.labels))
	copy(out, t.labels)
	return out
}

// Verify checks that other lists the same labels in the same order. The
// returned error names the first position that differs.
func (t Table) Verify(other []string) error {
	if len(other) != len(t.labels) {
		return fmt.Errorf("artifact has %d classes, table has %d", len(other), len(t.labels))
	}
	for i, l := range other {
		if l != t.labels[i] {
			return fmt.Errorf("class %d: artifact has %q, table has %q", i, l, t.labels[i])
		}
	}
	return nil
}

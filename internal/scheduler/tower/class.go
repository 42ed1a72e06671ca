package tower

import "github.com/towersched/towersched/internal/scheduler/schedule"

// Class groups jobs by their width relative to the number of machines.
type Class int

const (
	// Tiny jobs use at most a quarter of the machines.
	Tiny Class = iota
	// Small jobs use more than a quarter and at most a third.
	Small
	// Medium jobs use more than a third and at most half.
	Medium
	// Big jobs use more than half of the machines.
	Big
)

var AllClasses = []Class{Tiny, Small, Medium, Big}

func (c Class) String() string {
	switch c {
	case Tiny:
		return "tiny"
	case Small:
		return "small"
	case Medium:
		return "medium"
	case Big:
		return "big"
	default:
		return "unknown"
	}
}

// Classify returns the class of a job of the given width on m machines.
func Classify(width int, m int) Class {
	switch {
	case 4*width <= m:
		return Tiny
	case 3*width <= m:
		return Small
	case 2*width <= m:
		return Medium
	default:
		return Big
	}
}

func classOf(m int) func(*schedule.Job) Class {
	return func(j *schedule.Job) Class {
		return Classify(j.RequiredMachines, m)
	}
}

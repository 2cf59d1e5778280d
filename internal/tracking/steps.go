package tracking

// stepCounter normalizes raw step readings to steps since session start
type stepCounter struct {
	mode     StepMode
	baseline float64
	last     float64
	started  bool
	steps    int
}

func newStepCounter(mode StepMode) *stepCounter {
	return &stepCounter{mode: mode}
}

// observe applies one reading and returns the current total
func (c *stepCounter) observe(value float64) int {
	switch c.mode {
	case StepModeCounter:
		if !c.started || value < c.last {
			// first reading, or the counter went backwards after a reset
			c.baseline = value - float64(c.steps)
			c.started = true
		}
		c.last = value
		c.steps = int(value - c.baseline)
	case StepModeDetector:
		if value == 1 {
			c.steps++
		}
	}
	return c.steps
}

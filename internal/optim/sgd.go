package optim

import (
	"fmt"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// SGD implements Stochastic Gradient Descent optimizer with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
//
// Example:
//
//	optimizer := optim.NewSGD(optim.Collect(layer), optim.SGDConfig{
//	    LR:       0.01,
//	    Momentum: 0.9,
//	})
type SGD struct {
	params     []Parameter
	lr         float64
	momentum   float64
	velocities map[*mat.Dense]*mat.Dense
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR       float64 // Learning rate (default: 0.01)
	Momentum float64 // Momentum factor (default: 0.0, range: [0, 1))
}

// NewSGD creates a new SGD optimizer.
func NewSGD(params []Parameter, config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}

	return &SGD{
		params:     params,
		lr:         config.LR,
		momentum:   config.Momentum,
		velocities: make(map[*mat.Dense]*mat.Dense),
	}
}

// Step performs a single optimization step.
//
// Parameters without a value or gradient (e.g. released branches) are skipped.
func (s *SGD) Step() {
	for _, param := range s.params {
		if !usable(param) {
			continue
		}

		if s.momentum == 0 {
			// param -= lr * grad
			var update mat.Dense
			update.Scale(s.lr, param.Grad)
			param.Value.Sub(param.Value, &update)
			continue
		}

		velocity, exists := s.velocities[param.Value]
		if !exists {
			r, c := param.Value.Dims()
			velocity = mat.NewDense(r, c, nil)
			s.velocities[param.Value] = velocity
		}

		// velocity = momentum * velocity + grad
		velocity.Scale(s.momentum, velocity)
		velocity.Add(velocity, param.Grad)

		// param -= lr * velocity
		var update mat.Dense
		update.Scale(s.lr, velocity)
		param.Value.Sub(param.Value, &update)
	}
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD) ZeroGrad() {
	zeroGrads(s.params)
}

// GetLR returns the current learning rate.
func (s *SGD) GetLR() float64 {
	return s.lr
}

// SetLR updates the learning rate.
//
// Useful for learning rate scheduling during training.
func (s *SGD) SetLR(lr float64) {
	s.lr = lr
}

// StateDict returns the optimizer state for serialization.
//
// State keys: "velocity.{param_index}" -> velocity tensor. Without momentum
// the map is empty.
func (s *SGD) StateDict() map[string]*mat.Dense {
	stateDict := make(map[string]*mat.Dense)
	if s.momentum == 0 {
		return stateDict
	}

	for i, param := range s.params {
		velocity, exists := s.velocities[param.Value]
		if !exists {
			continue // Not stepped yet
		}
		stateDict["velocity."+strconv.Itoa(i)] = mat.DenseCopyOf(velocity)
	}
	return stateDict
}

// LoadStateDict restores velocity buffers saved by StateDict.
func (s *SGD) LoadStateDict(stateDict map[string]*mat.Dense) error {
	for i, param := range s.params {
		velocity, ok := stateDict["velocity."+strconv.Itoa(i)]
		if !ok {
			continue
		}
		if err := sameDims(param.Value, velocity); err != nil {
			return fmt.Errorf("velocity.%d: %w", i, err)
		}
		s.velocities[param.Value] = mat.DenseCopyOf(velocity)
	}
	return nil
}

// branchName prefixes a parameter name with its branch index.
func branchName(i int, name string) string {
	return fmt.Sprintf("branch.%d.%s", i, name)
}

// sameDims returns an error if a and b differ in shape.
func sameDims(a, b *mat.Dense) error {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != br || ac != bc {
		return fmt.Errorf("shape mismatch: want %dx%d, got %dx%d", ar, ac, br, bc)
	}
	return nil
}

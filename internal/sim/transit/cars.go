package transit

import "math"

func (c *Car) atFloor(f int) bool {
	return math.Abs(c.Floor-float64(f)) < floorEps
}

// pushStop appends a floor to the stop queue unless already queued.
func (c *Car) pushStop(floor int) {
	for _, f := range c.Stops {
		if f == floor {
			return
		}
	}
	c.Stops = append(c.Stops, floor)
}

// popStop removes the head of the stop queue.
func (c *Car) popStop() {
	if len(c.Stops) > 0 {
		c.Stops = c.Stops[1:]
	}
}

func (s *Simulation) stepCars(dt float64) {
	for _, car := range s.Cars() {
		s.stepCar(car, dt)
	}
}

// stepCar runs one tick of the strict car cycle:
// Idle -> MovingUp/MovingDown -> DoorsOpening -> DoorsOpen ->
// DoorsClosing -> Idle. The arrived stop is popped exactly once, on the
// DoorsOpening -> DoorsOpen transition.
func (s *Simulation) stepCar(car *Car, dt float64) {
	switch car.State {
	case CarIdle:
		if len(car.Stops) == 0 {
			return
		}
		car.Target = car.Stops[0]
		switch {
		case car.atFloor(car.Target):
			car.State = CarDoorsOpening
			car.StateTimer = 0
		case float64(car.Target) > car.Floor:
			car.State = CarMovingUp
		default:
			car.State = CarMovingDown
		}

	case CarMovingUp, CarMovingDown:
		step := car.FloorsPerSecond * dt
		diff := float64(car.Target) - car.Floor
		if math.Abs(diff) <= step {
			car.Floor = float64(car.Target)
			car.State = CarDoorsOpening
			car.StateTimer = 0
			return
		}
		car.Floor += math.Copysign(step, diff)

	case CarDoorsOpening:
		car.StateTimer += dt
		if car.StateTimer >= car.DoorTransitionDuration {
			car.State = CarDoorsOpen
			car.StateTimer = 0
			car.popStop()
		}

	case CarDoorsOpen:
		car.StateTimer += dt
		if car.StateTimer >= car.DoorOpenDuration {
			car.State = CarDoorsClosing
			car.StateTimer = 0
		}

	case CarDoorsClosing:
		car.StateTimer += dt
		if car.StateTimer >= car.DoorTransitionDuration {
			car.State = CarIdle
			car.StateTimer = 0
		}
	}
}

package transit

import "math"

const floorEps = 1e-9

func (s *Simulation) stepPersons(dt float64) {
	for _, p := range s.Persons() {
		switch p.State {
		case PersonWalking:
			s.stepWalking(p, dt)
		case PersonWaitingForElevator:
			s.stepWaiting(p, dt)
		case PersonInElevator:
			s.stepRiding(p)
		}
	}
}

// stepWalking moves the person along their current floor. With a request
// attached the walk target is the shaft column, otherwise the trip's
// destination column.
func (s *Simulation) stepWalking(p *Person, dt float64) {
	target := p.DestColumn
	if p.Request != nil {
		if sh := s.shafts[p.Request.ShaftID]; sh != nil {
			target = float64(sh.Column)
		}
	}

	step := p.MoveSpeed * dt
	diff := target - p.Column
	if math.Abs(diff) > step {
		p.Column += math.Copysign(step, diff)
		return
	}
	p.Column = target

	switch {
	case p.Request != nil:
		// At the shaft; wait for the car.
		p.State = PersonWaitingForElevator
	case p.Floor == p.DestFloor:
		p.State = PersonAtDestination
		p.WaitTime = 0
	default:
		p.State = PersonWaitingForElevator
	}
}

func (s *Simulation) stepWaiting(p *Person, dt float64) {
	if p.Request == nil {
		s.callElevator(p, dt)
		return
	}

	p.Request.WaitTime += dt

	if p.Request.CarID < 0 {
		// Called but never assigned: the shaft may have no cars. The
		// same timeout fallback applies so nobody waits forever.
		if p.Request.WaitTime >= s.cfg.WaitTimeoutSeconds {
			p.State = PersonInElevator
		}
		return
	}

	car := s.cars[p.Request.CarID]
	if car == nil {
		p.Request.CarID = -1
		return
	}
	if car.State == CarDoorsOpen && car.atFloor(p.Request.CallFloor) {
		if car.Occupancy < car.MaxCapacity {
			p.Request.Boarding = true
			p.State = PersonInElevator
			car.Occupancy++
			car.PassengerDest[p.ID] = p.Request.DestFloor
			return
		}
		// Full car: its queued stops for this trip are being consumed
		// without us aboard. Release the claim and call again.
		p.Request.CarID = -1
	}
}

// callElevator scans shafts for one covering the whole trip. Finding
// none accumulates wait time until the timeout forces the person onward;
// without the fallback a route no shaft covers would deadlock forever.
func (s *Simulation) callElevator(p *Person, dt float64) {
	for _, sh := range s.Shafts() {
		if sh.ServesFloor(p.Floor) && sh.ServesFloor(p.DestFloor) {
			p.Request = &Request{
				ShaftID:   sh.ID,
				CarID:     -1,
				CallFloor: p.Floor,
				DestFloor: p.DestFloor,
			}
			if p.Column != float64(sh.Column) {
				p.State = PersonWalking
			}
			return
		}
	}

	p.WaitTime += dt
	if p.WaitTime >= s.cfg.WaitTimeoutSeconds {
		p.State = PersonInElevator
	}
}

// stepRiding tracks the car and disembarks at the destination floor. A
// rider with no assigned car is in the timeout fallback: the ride
// completes immediately.
func (s *Simulation) stepRiding(p *Person) {
	var car *Car
	if p.Request != nil && p.Request.CarID >= 0 {
		car = s.cars[p.Request.CarID]
	}
	if car == nil {
		p.Floor = p.DestFloor
		p.Request = nil
		p.WaitTime = 0
		if p.Column != p.DestColumn {
			p.State = PersonWalking
		} else {
			p.State = PersonAtDestination
		}
		return
	}

	p.Floor = int(math.Round(car.Floor))

	if car.State == CarDoorsOpen && car.atFloor(p.Request.DestFloor) {
		p.Floor = p.Request.DestFloor
		car.Occupancy--
		delete(car.PassengerDest, p.ID)
		p.Request = nil
		p.WaitTime = 0
		if p.Column != p.DestColumn {
			p.State = PersonWalking
		} else {
			p.State = PersonAtDestination
		}
	}
}

// assignRequests claims a car for every called-but-unassigned request:
// the first car of the requested shaft with a spare seat, by id. Both
// the call floor and the destination floor join the car's stop queue.
// Splitting the call from the assignment lets several persons queue on
// one shaft without rescanning every car each tick.
func (s *Simulation) assignRequests() {
	for _, p := range s.Persons() {
		if p.State != PersonWaitingForElevator || p.Request == nil || p.Request.CarID >= 0 {
			continue
		}
		for _, car := range s.Cars() {
			if car.ShaftID != p.Request.ShaftID || car.Occupancy >= car.MaxCapacity {
				continue
			}
			p.Request.CarID = car.ID
			car.pushStop(p.Request.CallFloor)
			car.pushStop(p.Request.DestFloor)
			break
		}
	}
}

package transit

import "sort"

type PersonState string

const (
	PersonIdle               PersonState = "IDLE"
	PersonWalking            PersonState = "WALKING"
	PersonWaitingForElevator PersonState = "WAITING_FOR_ELEVATOR"
	PersonInElevator         PersonState = "IN_ELEVATOR"
	PersonAtDestination      PersonState = "AT_DESTINATION"
)

type CarState string

const (
	CarIdle         CarState = "IDLE"
	CarMovingUp     CarState = "MOVING_UP"
	CarMovingDown   CarState = "MOVING_DOWN"
	CarDoorsOpening CarState = "DOORS_OPENING"
	CarDoorsOpen    CarState = "DOORS_OPEN"
	CarDoorsClosing CarState = "DOORS_CLOSING"
)

// Request links a person to the elevator system. Two phases: the call
// (CarID -1, shaft chosen) and the assignment (a concrete car claimed,
// stops queued). Removed from the person when the ride completes.
type Request struct {
	ShaftID   int
	CarID     int
	CallFloor int
	DestFloor int
	WaitTime  float64
	Boarding  bool
}

// Person is a mobile agent moving through the tower one axis at a time:
// walk along a floor, ride an elevator between floors.
type Person struct {
	ID         int
	Name       string
	Floor      int
	Column     float64
	DestFloor  int
	DestColumn float64
	State      PersonState
	MoveSpeed  float64
	WaitTime   float64
	Request    *Request

	// BoundFor is the facility id the person is heading to, -1 when the
	// trip has no facility attached.
	BoundFor int
}

// Shaft is the static vertical lane cars travel in.
type Shaft struct {
	ID          int
	Column      int
	BottomFloor int
	TopFloor    int
	CarCount    int
}

func (s *Shaft) ServesFloor(f int) bool {
	return f >= s.BottomFloor && f <= s.TopFloor
}

// Car is one elevator cab bound to a shaft. Floor is fractional while
// the car moves; it snaps to the integer target on arrival. Stops is a
// FIFO of floors still to visit, deduplicated on push.
type Car struct {
	ID            int
	ShaftID       int
	Floor         float64
	Target        int
	State         CarState
	MaxCapacity   int
	Occupancy     int
	Stops         []int
	PassengerDest map[int]int // person id -> destination floor

	StateTimer             float64
	FloorsPerSecond        float64
	DoorOpenDuration       float64
	DoorTransitionDuration float64
}

// Config tunes agent and car movement. Zero fields take defaults.
type Config struct {
	PersonMoveSpeed       float64 // columns per second
	WaitTimeoutSeconds    float64
	CarFloorsPerSecond    float64
	DoorOpenSeconds       float64
	DoorTransitionSeconds float64
	CarCapacity           int
}

func (c *Config) applyDefaults() {
	if c.PersonMoveSpeed <= 0 {
		c.PersonMoveSpeed = 1.5
	}
	if c.WaitTimeoutSeconds <= 0 {
		c.WaitTimeoutSeconds = 10
	}
	if c.CarFloorsPerSecond <= 0 {
		c.CarFloorsPerSecond = 2
	}
	if c.DoorOpenSeconds <= 0 {
		c.DoorOpenSeconds = 1.5
	}
	if c.DoorTransitionSeconds <= 0 {
		c.DoorTransitionSeconds = 0.5
	}
	if c.CarCapacity <= 0 {
		c.CarCapacity = 8
	}
}

// Simulation owns every person, shaft and car. All mutation must happen
// on the simulation goroutine; Step advances the three per-tick systems
// in a fixed order over id-sorted agents so runs are reproducible.
type Simulation struct {
	cfg Config

	persons map[int]*Person
	shafts  map[int]*Shaft
	cars    map[int]*Car

	nextPersonID int
	nextShaftID  int
	nextCarID    int
}

func New(cfg Config) *Simulation {
	cfg.applyDefaults()
	return &Simulation{
		cfg:          cfg,
		persons:      make(map[int]*Person),
		shafts:       make(map[int]*Shaft),
		cars:         make(map[int]*Car),
		nextPersonID: 1,
		nextShaftID:  1,
		nextCarID:    1,
	}
}

// Step advances persons, request assignment and cars by one tick of dt
// seconds. The three systems only exchange state through components, so
// their relative order never changes outcomes by more than one tick.
func (s *Simulation) Step(dt float64) {
	s.stepPersons(dt)
	s.assignRequests()
	s.stepCars(dt)
}

// AddShaft registers a vertical lane at a column serving the inclusive
// floor range. Returns nil on an inverted range.
func (s *Simulation) AddShaft(column, bottomFloor, topFloor int) *Shaft {
	if bottomFloor > topFloor {
		return nil
	}
	sh := &Shaft{
		ID:          s.nextShaftID,
		Column:      column,
		BottomFloor: bottomFloor,
		TopFloor:    topFloor,
	}
	s.nextShaftID++
	s.shafts[sh.ID] = sh
	return sh
}

// AddCar puts a new car at the bottom of a shaft.
func (s *Simulation) AddCar(shaftID int) *Car {
	sh := s.shafts[shaftID]
	if sh == nil {
		return nil
	}
	car := &Car{
		ID:                     s.nextCarID,
		ShaftID:                shaftID,
		Floor:                  float64(sh.BottomFloor),
		Target:                 sh.BottomFloor,
		State:                  CarIdle,
		MaxCapacity:            s.cfg.CarCapacity,
		PassengerDest:          make(map[int]int),
		FloorsPerSecond:        s.cfg.CarFloorsPerSecond,
		DoorOpenDuration:       s.cfg.DoorOpenSeconds,
		DoorTransitionDuration: s.cfg.DoorTransitionSeconds,
	}
	s.nextCarID++
	s.cars[car.ID] = car
	sh.CarCount++
	return car
}

// SpawnPerson creates a person at (floor, column). A destination away
// from the spawn point starts them Walking, otherwise they Idle until
// sent somewhere.
func (s *Simulation) SpawnPerson(name string, floor int, column float64, destFloor int, destColumn float64) *Person {
	p := &Person{
		ID:         s.nextPersonID,
		Name:       name,
		Floor:      floor,
		Column:     column,
		DestFloor:  destFloor,
		DestColumn: destColumn,
		State:      PersonIdle,
		MoveSpeed:  s.cfg.PersonMoveSpeed,
		BoundFor:   -1,
	}
	if destFloor != floor || destColumn != column {
		p.State = PersonWalking
	}
	s.nextPersonID++
	s.persons[p.ID] = p
	return p
}

// SendTo redirects a person to a new destination. Riders keep their
// current trip; everyone else starts walking.
func (s *Simulation) SendTo(p *Person, destFloor int, destColumn float64) {
	p.DestFloor = destFloor
	p.DestColumn = destColumn
	switch p.State {
	case PersonIdle, PersonAtDestination, PersonWalking:
		p.State = PersonWalking
		p.WaitTime = 0
	case PersonWaitingForElevator:
		// Re-plan: the attached call may no longer serve the new floor.
		s.detachRequest(p)
		p.State = PersonWalking
		p.WaitTime = 0
	}
}

// RemovePerson despawns a person, releasing any car seat they hold.
func (s *Simulation) RemovePerson(id int) bool {
	p := s.persons[id]
	if p == nil {
		return false
	}
	s.detachRequest(p)
	delete(s.persons, id)
	return true
}

// detachRequest drops the person's request and frees their seat if they
// already boarded.
func (s *Simulation) detachRequest(p *Person) {
	if p.Request == nil {
		return
	}
	if car := s.cars[p.Request.CarID]; car != nil {
		if _, aboard := car.PassengerDest[p.ID]; aboard {
			car.Occupancy--
			delete(car.PassengerDest, p.ID)
		}
	}
	p.Request = nil
}

func (s *Simulation) Person(id int) *Person { return s.persons[id] }
func (s *Simulation) Shaft(id int) *Shaft   { return s.shafts[id] }
func (s *Simulation) Car(id int) *Car       { return s.cars[id] }

func (s *Simulation) PersonCount() int { return len(s.persons) }
func (s *Simulation) ShaftCount() int  { return len(s.shafts) }
func (s *Simulation) CarCount() int    { return len(s.cars) }

// Persons returns every person sorted by id.
func (s *Simulation) Persons() []*Person {
	out := make([]*Person, 0, len(s.persons))
	for _, p := range s.persons {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Shafts returns every shaft sorted by id.
func (s *Simulation) Shafts() []*Shaft {
	out := make([]*Shaft, 0, len(s.shafts))
	for _, sh := range s.shafts {
		out = append(out, sh)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Cars returns every car sorted by id.
func (s *Simulation) Cars() []*Car {
	out := make([]*Car, 0, len(s.cars))
	for _, c := range s.cars {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Counters exposes the id counters for snapshots.
func (s *Simulation) Counters() (person, shaft, car int) {
	return s.nextPersonID, s.nextShaftID, s.nextCarID
}

// SetCounters restores id counters from a snapshot; counters never move
// backward past an id in use.
func (s *Simulation) SetCounters(person, shaft, car int) {
	if person > s.nextPersonID {
		s.nextPersonID = person
	}
	if shaft > s.nextShaftID {
		s.nextShaftID = shaft
	}
	if car > s.nextCarID {
		s.nextCarID = car
	}
}

// RestorePerson re-registers a person from persisted state.
func (s *Simulation) RestorePerson(rec Person) *Person {
	if rec.ID < 1 || s.persons[rec.ID] != nil {
		return nil
	}
	p := rec
	if p.MoveSpeed <= 0 {
		p.MoveSpeed = s.cfg.PersonMoveSpeed
	}
	s.persons[p.ID] = &p
	if p.ID >= s.nextPersonID {
		s.nextPersonID = p.ID + 1
	}
	return &p
}

// RestoreShaft re-registers a shaft from persisted state.
func (s *Simulation) RestoreShaft(rec Shaft) *Shaft {
	if rec.ID < 1 || s.shafts[rec.ID] != nil {
		return nil
	}
	sh := rec
	sh.CarCount = 0 // recounted as cars are restored
	s.shafts[sh.ID] = &sh
	if sh.ID >= s.nextShaftID {
		s.nextShaftID = sh.ID + 1
	}
	return &sh
}

// RestoreCar re-registers a car from persisted state.
func (s *Simulation) RestoreCar(rec Car) *Car {
	if rec.ID < 1 || s.cars[rec.ID] != nil {
		return nil
	}
	sh := s.shafts[rec.ShaftID]
	if sh == nil {
		return nil
	}
	car := rec
	car.Stops = append([]int(nil), rec.Stops...)
	car.PassengerDest = make(map[int]int, len(rec.PassengerDest))
	for id, floor := range rec.PassengerDest {
		car.PassengerDest[id] = floor
	}
	if car.FloorsPerSecond <= 0 {
		car.FloorsPerSecond = s.cfg.CarFloorsPerSecond
	}
	if car.DoorOpenDuration <= 0 {
		car.DoorOpenDuration = s.cfg.DoorOpenSeconds
	}
	if car.DoorTransitionDuration <= 0 {
		car.DoorTransitionDuration = s.cfg.DoorTransitionSeconds
	}
	s.cars[car.ID] = &car
	if car.ID >= s.nextCarID {
		s.nextCarID = car.ID + 1
	}
	sh.CarCount++
	return &car
}

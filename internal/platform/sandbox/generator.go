// Package sandbox creates reproducible demo data for development and review
// environments. Everything it writes goes through the clinic services, so the
// seed is load-balanced, notified and audited like any other traffic.
package sandbox

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/ayurclinic/clinic/internal/domain/identity"
	"github.com/ayurclinic/clinic/internal/domain/therapy"
	"github.com/ayurclinic/clinic/internal/platform/auth"
	"github.com/ayurclinic/clinic/pkg/dates"
)

var (
	firstNamesMale = []string{
		"Arjun", "Rohan", "Vikram", "Karthik", "Suresh", "Anil", "Rahul", "Manoj",
		"Deepak", "Nikhil", "Sanjay", "Harish",
	}
	firstNamesFemale = []string{
		"Ananya", "Priya", "Lakshmi", "Meera", "Kavya", "Divya", "Sneha", "Nandini",
		"Asha", "Pooja", "Radha", "Shreya",
	}
	lastNames = []string{
		"Nair", "Menon", "Iyer", "Sharma", "Pillai", "Reddy", "Rao", "Kulkarni",
		"Joshi", "Gupta", "Varma", "Krishnan",
	}
	cities = []string{
		"Kochi", "Thrissur", "Kozhikode", "Mysuru", "Pune", "Chennai", "Bengaluru",
	}
	specializations = []string{
		"Kayachikitsa", "Panchakarma", "Shalya Tantra", "Prasuti Tantra",
	}
	doshas = []string{
		identity.DoshaVata, identity.DoshaPitta, identity.DoshaKapha, identity.DoshaTridosha,
	}
	histories = []string{
		"Chronic lower back pain", "Migraine", "Insomnia", "Osteoarthritis of knee",
		"Irritable bowel syndrome", "Psoriasis", "Hypertension, controlled",
	}
	rooms = []string{"Room 1", "Room 2", "Room 3", "Abhyanga Hall", "Shirodhara Suite"}
	symptoms = []string{
		"fatigue", "stiffness", "headache", "poor sleep", "bloating", "joint pain",
	}
)

type therapyPlan struct {
	Type  string
	Phase string
	Herbs []string
	Days  int
}

var therapyPlans = []therapyPlan{
	{"Abhyanga", "Purvakarma", []string{"Mahanarayan taila"}, 7},
	{"Shirodhara", "Purvakarma", []string{"Ksheerabala taila"}, 7},
	{"Virechana", "Pradhanakarma", []string{"Trivrit lehya", "Triphala"}, 5},
	{"Basti", "Pradhanakarma", []string{"Dashamoola kashaya"}, 8},
	{"Nasya", "Pradhanakarma", []string{"Anu taila"}, 7},
	{"Rasayana", "Paschatkarma", []string{"Chyawanprash", "Ashwagandha"}, 14},
}

// DataGenerator produces deterministic demo records. The same seed yields the
// same sequence.
type DataGenerator struct {
	rng     *rand.Rand
	counter uint64
}

// NewDataGenerator returns a generator seeded for reproducibility. If seed is
// 0 a time-based seed is chosen.
func NewDataGenerator(seed int64) *DataGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &DataGenerator{rng: rand.New(rand.NewSource(seed))}
}

func (g *DataGenerator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

func (g *DataGenerator) randomPhone() string {
	return fmt.Sprintf("+91 %d%04d %05d", 6+g.rng.Intn(4), g.rng.Intn(10000), g.rng.Intn(100000))
}

// PersonName returns a full name and the matching gender.
func (g *DataGenerator) PersonName() (name, gender string) {
	first := g.pick(firstNamesFemale)
	gender = "female"
	if g.rng.Intn(2) == 0 {
		first = g.pick(firstNamesMale)
		gender = "male"
	}
	return first + " " + g.pick(lastNames), gender
}

// Staff returns the input for a staff account. Emails are numbered per role so
// they stay unique across one run.
func (g *DataGenerator) Staff(role, password string) identity.CreateUserInput {
	g.counter++
	name, _ := g.PersonName()
	in := identity.CreateUserInput{
		Email:    fmt.Sprintf("%s%d@clinic.local", role, g.counter),
		Name:     name,
		Role:     role,
		Password: password,
		Phone:    g.randomPhone(),
	}
	if role == auth.RoleDoctor {
		in.Name = "Dr. " + name
		in.Specialization = g.pick(specializations)
	}
	return in
}

// Patient returns an unassigned patient record.
func (g *DataGenerator) Patient() *identity.Patient {
	name, gender := g.PersonName()
	return &identity.Patient{
		Name:           name,
		Age:            18 + g.rng.Intn(62),
		Gender:         gender,
		Phone:          g.randomPhone(),
		Address:        fmt.Sprintf("%d MG Road, %s", 1+g.rng.Intn(300), g.pick(cities)),
		Dosha:          g.pick(doshas),
		MedicalHistory: g.pick(histories),
	}
}

// Therapy returns a course for patientID starting up to two weeks before
// today.
func (g *DataGenerator) Therapy(patientID string, today time.Time) therapy.CreateInput {
	plan := therapyPlans[g.rng.Intn(len(therapyPlans))]
	start := today.AddDate(0, 0, -g.rng.Intn(14))
	return therapy.CreateInput{
		PatientID:    patientID,
		Type:         plan.Type,
		Phase:        plan.Phase,
		StartDate:    start.Format(dates.DateLayout),
		DurationDays: plan.Days,
		Room:         g.pick(rooms),
		Herbs:        append([]string(nil), plan.Herbs...),
	}
}

// Sessions returns n visits on consecutive days from start with rising
// progress. Roughly one visit in ten is a no-show.
func (g *DataGenerator) Sessions(start time.Time, n int) []therapy.SessionInput {
	out := make([]therapy.SessionInput, 0, n)
	progress := 0
	for i := 0; i < n; i++ {
		date := start.AddDate(0, 0, i)
		attended := g.rng.Intn(10) != 0
		pct := 0
		if attended {
			progress += 10 + g.rng.Intn(25)
			if progress > 100 {
				progress = 100
			}
			pct = progress
		}
		out = append(out, therapy.SessionInput{
			Date:            &date,
			Notes:           fmt.Sprintf("Visit %d", i+1),
			ProgressPercent: &pct,
			Attended:        &attended,
			Symptoms:        []string{g.pick(symptoms)},
		})
	}
	return out
}

// Package metrics exposes evolution progress as Prometheus collectors.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"gpr/internal/evo"
)

const namespace = "gpr"

// Collector implements evo.Observer and records compression outcomes for
// graph runs. All collectors are registered on the Registerer passed to
// New.
type Collector struct {
	Generations  prometheus.Counter
	Evaluations  prometheus.Counter
	Migrations   *prometheus.CounterVec
	Compressions *prometheus.CounterVec
	BestFitness  *prometheus.GaugeVec
	MeanFitness  *prometheus.GaugeVec
	Diversity    *prometheus.GaugeVec
	MutationProb *prometheus.GaugeVec
}

var _ evo.Observer = (*Collector)(nil)

func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		Generations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "island_generations_total",
			Help:      "Island generations completed.",
		}),
		Evaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Fitness evaluations performed.",
		}),
		Migrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "migrations_total",
			Help:      "Individuals moved between islands.",
		}, []string{"to"}),
		Compressions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compressions_total",
			Help:      "ADF compression attempts after crossover.",
		}, []string{"result"}),
		BestFitness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "island_best_fitness",
			Help:      "Best fitness of the latest generation.",
		}, []string{"island"}),
		MeanFitness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "island_mean_fitness",
			Help:      "Mean fitness of the latest generation.",
		}, []string{"island"}),
		Diversity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "island_diversity",
			Help:      "Fraction of occupied fitness histogram bins.",
		}, []string{"island"}),
		MutationProb: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "island_mutation_probability",
			Help:      "Mutation probability after diversity adaptation.",
		}, []string{"island"}),
	}
	for _, collector := range []prometheus.Collector{
		c.Generations, c.Evaluations, c.Migrations, c.Compressions,
		c.BestFitness, c.MeanFitness, c.Diversity, c.MutationProb,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) ObserveGeneration(d evo.Diagnostics) {
	island := strconv.Itoa(d.Island)
	c.Generations.Inc()
	c.Evaluations.Add(float64(d.Evaluated))
	c.BestFitness.WithLabelValues(island).Set(d.BestFitness)
	c.MeanFitness.WithLabelValues(island).Set(d.MeanFitness)
	c.Diversity.WithLabelValues(island).Set(d.Diversity)
	c.MutationProb.WithLabelValues(island).Set(d.MutationProb)
}

func (c *Collector) ObserveMigration(_, to int) {
	c.Migrations.WithLabelValues(strconv.Itoa(to)).Inc()
}

// ObserveCompression matches evo.Graph.OnCompress.
func (c *Collector) ObserveCompression(_ int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.Compressions.WithLabelValues(result).Inc()
}

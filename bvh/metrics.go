package bvh

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	treeLabel = "tree"
	opLabel   = "op"
	kindLabel = "kind"
)

const (
	mutationInsert   = "insert"
	mutationRemove   = "remove"
	mutationUpdate   = "update"
	mutationSplit    = "split"
	mutationMerge    = "merge"
	mutationCollapse = "collapse"

	optimizeLeafSwap = "leaf_swap"
	optimizeRotation = "rotation"
)

var (
	treeMutationCountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spatial_index_mutation_count_total",
		Help: "The total number of index mutations.",
	}, []string{treeLabel, opLabel})

	treeOptimizeCountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spatial_index_optimize_count_total",
		Help: "The total number of accepted optimization moves.",
	}, []string{treeLabel, kindLabel})

	treeOptimizeImprovement = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spatial_index_optimize_improvement",
		Help:    "The bound cost reduction of accepted optimization moves.",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
	}, []string{treeLabel})
)

func instrumentMutation(tree, op string) {
	treeMutationCountTotal.
		With(prometheus.Labels{treeLabel: tree, opLabel: op}).
		Inc()
}

func instrumentMutationN(tree, op string, n int) {
	treeMutationCountTotal.
		With(prometheus.Labels{treeLabel: tree, opLabel: op}).
		Add(float64(n))
}

func instrumentOptimize(tree, kind string) {
	treeOptimizeCountTotal.
		With(prometheus.Labels{treeLabel: tree, kindLabel: kind}).
		Inc()
}

func instrumentOptimizeImprovement(tree string, delta float32) {
	treeOptimizeImprovement.
		With(prometheus.Labels{treeLabel: tree}).
		Observe(float64(delta))
}

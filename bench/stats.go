package bench

import (
    "golang.org/x/exp/constraints"
    "slices"
)

type number interface {
    constraints.Integer | constraints.Float
}

func sum[T number](xs []T) T {
    var total T
    for _, x := range xs {
        total += x
    }
    return total
}

func mean[T number](xs []T) float64 {
    if len(xs) == 0 {
        return 0
    }
    return float64(sum(xs)) / float64(len(xs))
}

// percentile returns the nearest-rank p-th percentile, p in [0, 100].
func percentile[T number](xs []T, p float64) T {
    if len(xs) == 0 {
        var zero T
        return zero
    }
    sorted := slices.Clone(xs)
    slices.Sort(sorted)

    rank := int(p/100*float64(len(sorted)) + 0.5)
    rank = min(max(rank, 1), len(sorted))
    return sorted[rank-1]
}

func maximum[T number](xs []T) T {
    var m T
    for i, x := range xs {
        if i == 0 || x > m {
            m = x
        }
    }
    return m
}

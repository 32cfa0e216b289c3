package injection

import (
	"math"
	"math/rand/v2"
)

// splitmix64 is the SplitMix64 finaliser, used to decorrelate stream keys.
func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// DeriveSeed mixes a base seed with an index, e.g. to give each injector of
// a run its own seed.
func DeriveSeed(base uint64, index int) uint64 {
	return splitmix64(base ^ splitmix64(uint64(index)))
}

// parcelStream returns the random stream for parcel parcelI of the
// injection event at time t. The stream depends only on (seed, t, parcelI),
// so parcels can be generated in any order or concurrently and still
// reproduce bit for bit.
func parcelStream(seed uint64, t float64, parcelI int) *rand.Rand {
	key := splitmix64(math.Float64bits(t) ^ splitmix64(uint64(parcelI)))
	return rand.New(rand.NewPCG(seed, key))
}

// Package ecdsalattice recovers ECDSA private keys from signatures whose nonces
// partially leak. Knowing a few least or most significant bits of every nonce
// turns key recovery into a Hidden Number Problem, which a lattice reduction
// solves once enough signatures are available.
//
// # Quick Start
//
//	import "github.com/mahdiidarabi/ecdsa-lattice/pkg/ecdsalattice"
//
//	client := ecdsalattice.NewClient()
//
//	result, err := client.RecoverKey(ctx, "data.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("Recovered key: %s\n", result.PrivateKey.Text(16))
//
// RecoverKey fails with ErrInfeasible when the leak is too small or the file
// holds too few signatures, and with ErrExhausted when every attempt failed.
// A returned key has always been checked against the public key.
//
// # Customization
//
//	client := ecdsalattice.NewClient().
//	    WithMode(ecdsalattice.ClosestVector).
//	    WithSchedule(ecdsalattice.BKZSchedule()).
//	    WithMaxAttempts(100).
//	    WithWorkers(4).
//	    WithOracle(fplll.NewOracle())
//
// # Custom Back-ends
//
// Implement the ReductionOracle interface to plug another lattice library:
//
//	type MyOracle struct{}
//
//	func (o *MyOracle) Reduce(ctx context.Context, basis [][]*big.Int, blockSize int) ([][]*big.Int, error) {
//	    // reduce the rows of basis
//	}
//
//	func (o *MyOracle) ClosestVector(ctx context.Context, basis [][]*big.Int, target []*big.Int) ([]*big.Int, error) {
//	    // find a lattice point close to target
//	}
//
//	func (o *MyOracle) Name() string {
//	    return "my-oracle"
//	}
package ecdsalattice

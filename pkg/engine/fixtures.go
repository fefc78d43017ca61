package engine

// Fixture is a dataset the test environment prefetches so example runs
// never hit the network. Fixtures are addressed by a stable identifier;
// transport is the executor's concern.
type Fixture struct {
	Name   string
	URI    string
	Digest string
}

// Fixtures returns the datasets every environment prefetches,
// independent of framework selection.
func Fixtures() []Fixture {
	return []Fixture{
		{
			Name:   "mnist",
			URI:    "https://storage.googleapis.com/tensorflow/tf-keras-datasets/mnist.npz",
			Digest: "731c5ac602752760c8e48fbffcf8c3b850d9dc2a2aedcf2cc48468fc17b673d1",
		},
		{
			Name:   "cifar10",
			URI:    "https://www.cs.toronto.edu/~kriz/cifar-10-python.tar.gz",
			Digest: "6d958be074577803d12ecdefd02955f39262c83c16fe9348329d7fe0b5c001ce",
		},
	}
}

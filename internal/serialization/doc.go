// Package serialization provides the .mmrg container used to persist
// multiplicative merge layers together with their branches.
//
//	Format Structure:
//	  [64 bytes: fixed header]
//	    0x00-0x03  magic "MMRG"
//	    0x04-0x07  version (uint32 LE)
//	    0x08-0x0B  flags (uint32 LE)
//	    0x0C-0x0F  reserved
//	    0x10-0x17  header size (uint64 LE)
//	    0x18-0x1F  data size (uint64 LE)
//	    0x20-0x3F  SHA-256 of the data section
//	  [Header: JSON metadata, branch records in collection order]
//	  [Padding to a 64-byte boundary]
//	  [Tensor data: float64 LE, row-major]
//
// Branch records are tagged with their kind so that a heterogeneous
// collection can be rebuilt through a kind registry on load. The layer
// flags (model, run, owns_layer) are stored in the header.
//
// Example usage:
//
//	var buf bytes.Buffer
//	if err := serialization.Encode(&buf, header, tensors); err != nil {
//	    log.Fatal(err)
//	}
//
//	file, err := serialization.Decode(&buf, serialization.DefaultReaderOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	weights := file.Tensors["branch.0.weight"]
package serialization

package runtime

const (
	// AccountStorageOverhead is charged on top of the data length.
	AccountStorageOverhead = 128
	// LamportsPerByteYear is the rent rate of the default cluster config.
	LamportsPerByteYear = 3480
	// ExemptionThresholdYears is how many years of rent make an account exempt.
	ExemptionThresholdYears = 2
)

// RentExemptMinimum returns the balance an account of dataLen bytes needs
// to be rent exempt.
func RentExemptMinimum(dataLen int) uint64 {
	return uint64(AccountStorageOverhead+dataLen) * LamportsPerByteYear * ExemptionThresholdYears
}

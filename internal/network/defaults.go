package network

// builtin mirrors the networks the wallet ships with.
var builtin = []Descriptor{
	{
		ChainID:           "0x1",
		ChainName:         "Ethereum Mainnet",
		Name:              "Ethereum Mainnet",
		Currency:          "ETH",
		Decimals:          18,
		RPCURLs:           []string{"https://mainnet.infura.io/v3/", "https://eth-mainnet.public.blastapi.io"},
		BlockExplorerURLs: []string{"https://etherscan.io"},
		IsSupported:       true,
	},
	{
		ChainID:           "0xaa36a7",
		ChainName:         "Sepolia",
		Name:              "Sepolia Testnet",
		Currency:          "ETH",
		Decimals:          18,
		RPCURLs:           []string{"https://sepolia.infura.io/v3/", "https://eth-sepolia.public.blastapi.io"},
		BlockExplorerURLs: []string{"https://sepolia.etherscan.io"},
		IsTestnet:         true,
		IsSupported:       true,
	},
	{
		ChainID:   "0x4268",
		ChainName: "Holesky",
		Name:      "Holesky Testnet",
		Currency:  "ETH",
		Decimals:  18,
		RPCURLs: []string{
			"https://ethereum-holesky.publicnode.com",
			"https://holesky.rpc.thirdweb.com",
			"https://rpc.holesky.ethpandaops.io",
		},
		BlockExplorerURLs: []string{"https://holesky.etherscan.io"},
		IsTestnet:         true,
		IsSupported:       true,
	},
	{
		ChainID:           "0x88bb0",
		ChainName:         "Ethereum Hoodi",
		Name:              "Ethereum Hoodi",
		Currency:          "ETH",
		Decimals:          18,
		RPCURLs:           []string{"https://hoodi.drpc.org"},
		BlockExplorerURLs: []string{"https://hoodi.etherscan.io"},
		IsTestnet:         true,
		IsSupported:       true,
	},
	{
		ChainID:           "0x5",
		ChainName:         "Goerli",
		Name:              "Goerli Testnet",
		Currency:          "ETH",
		Decimals:          18,
		RPCURLs:           []string{"https://goerli.infura.io/v3/", "https://eth-goerli.public.blastapi.io"},
		BlockExplorerURLs: []string{"https://goerli.etherscan.io"},
		IsTestnet:         true,
		IsSupported:       true,
	},
	{
		ChainID:           "0x89",
		ChainName:         "Polygon Mainnet",
		Name:              "Polygon Mainnet",
		Currency:          "MATIC",
		Decimals:          18,
		RPCURLs:           []string{"https://polygon-rpc.com", "https://rpc-mainnet.matic.network"},
		BlockExplorerURLs: []string{"https://polygonscan.com"},
		IsSupported:       true,
	},
	{
		ChainID:           "0x13881",
		ChainName:         "Polygon Mumbai",
		Name:              "Polygon Mumbai",
		Currency:          "MATIC",
		Decimals:          18,
		RPCURLs:           []string{"https://rpc-mumbai.maticvigil.com", "https://polygon-mumbai.blockpi.network/v1/rpc/public"},
		BlockExplorerURLs: []string{"https://mumbai.polygonscan.com"},
		IsTestnet:         true,
		IsSupported:       true,
	},
	{
		ChainID:           "0xa86a",
		ChainName:         "Avalanche C-Chain",
		Name:              "Avalanche C-Chain",
		Currency:          "AVAX",
		Decimals:          18,
		RPCURLs:           []string{"https://api.avax.network/ext/bc/C/rpc"},
		BlockExplorerURLs: []string{"https://snowtrace.io"},
		IsSupported:       true,
	},
	{
		ChainID:           "0xa869",
		ChainName:         "Avalanche Fuji",
		Name:              "Avalanche Fuji Testnet",
		Currency:          "AVAX",
		Decimals:          18,
		RPCURLs:           []string{"https://api.avax-test.network/ext/bc/C/rpc"},
		BlockExplorerURLs: []string{"https://testnet.snowtrace.io"},
		IsTestnet:         true,
		IsSupported:       true,
	},
	{
		ChainID:           "0x38",
		ChainName:         "BSC Mainnet",
		Name:              "BNB Smart Chain",
		Currency:          "BNB",
		Decimals:          18,
		RPCURLs:           []string{"https://bsc-dataseed.binance.org", "https://bsc-dataseed1.defibit.io"},
		BlockExplorerURLs: []string{"https://bscscan.com"},
		IsSupported:       true,
	},
	{
		ChainID:           "0x61",
		ChainName:         "BSC Testnet",
		Name:              "BNB Smart Chain Testnet",
		Currency:          "BNB",
		Decimals:          18,
		RPCURLs:           []string{"https://data-seed-prebsc-1-s1.binance.org:8545"},
		BlockExplorerURLs: []string{"https://testnet.bscscan.com"},
		IsTestnet:         true,
		IsSupported:       true,
	},
}

// Default returns the built-in network table.
func Default() *Table {
	t, err := NewTable(builtin)
	if err != nil {
		panic(err)
	}
	return t
}

package gateway

// loanManagerABI covers the loan manager calls and events the application uses.
const loanManagerABI = `[
  {"type":"function","name":"getCollateralValueIDRForToken","stateMutability":"view",
   "inputs":[{"name":"amount","type":"uint256"},{"name":"token","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getMaxBorrowIDR","stateMutability":"view",
   "inputs":[{"name":"amount","type":"uint256"},{"name":"token","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getDebtNow","stateMutability":"view",
   "inputs":[{"name":"positionId","type":"uint256"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getCollateralValueIDR","stateMutability":"view",
   "inputs":[{"name":"positionId","type":"uint256"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getLtvNow","stateMutability":"view",
   "inputs":[{"name":"positionId","type":"uint256"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"positions","stateMutability":"view",
   "inputs":[{"name":"positionId","type":"uint256"}],
   "outputs":[
     {"name":"id","type":"uint256"},
     {"name":"borrower","type":"address"},
     {"name":"collateralToken","type":"address"},
     {"name":"collateralAmount","type":"uint256"},
     {"name":"principalIdr","type":"uint256"},
     {"name":"aprBps","type":"uint256"},
     {"name":"openedAt","type":"uint256"},
     {"name":"status","type":"uint8"},
     {"name":"offchainRefHash","type":"bytes32"},
     {"name":"repayRefHash","type":"bytes32"}]},
  {"type":"function","name":"getUserPositions","stateMutability":"view",
   "inputs":[{"name":"user","type":"address"}],
   "outputs":[{"name":"","type":"uint256[]"}]},
  {"type":"function","name":"getEthUsd","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"usdIdrRate","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"usdIdrUpdatedAt","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"isFxRateStale","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"createRequestETH","stateMutability":"payable",
   "inputs":[{"name":"requestedIdr","type":"uint256"},{"name":"offchainRefHash","type":"bytes32"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"createRequestUSDC","stateMutability":"nonpayable",
   "inputs":[{"name":"amount","type":"uint256"},{"name":"requestedIdr","type":"uint256"},{"name":"offchainRefHash","type":"bytes32"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"requestRepay","stateMutability":"nonpayable",
   "inputs":[{"name":"positionId","type":"uint256"},{"name":"repayRefHash","type":"bytes32"}],
   "outputs":[]},
  {"type":"function","name":"withdrawCollateral","stateMutability":"nonpayable",
   "inputs":[{"name":"positionId","type":"uint256"}],
   "outputs":[]},
  {"type":"event","name":"LoanRequested","anonymous":false,
   "inputs":[
     {"name":"positionId","type":"uint256","indexed":true},
     {"name":"borrower","type":"address","indexed":true},
     {"name":"collateralToken","type":"address","indexed":false},
     {"name":"collateralAmount","type":"uint256","indexed":false},
     {"name":"requestedIdr","type":"uint256","indexed":false},
     {"name":"offchainRefHash","type":"bytes32","indexed":false}]}
]`

const erc20ABI = `[
  {"type":"function","name":"balanceOf","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"allowance","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"approve","stateMutability":"nonpayable",
   "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],
   "outputs":[{"name":"","type":"bool"}]}
]`

package web3

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Contract method and event names.
const (
	methodCreateCampaign       = "createCampaign"
	methodMakeDonation         = "makeDonation"
	methodSubmitImpactReport   = "submitImpactReport"
	methodUpdateDonorProfile   = "updateDonorProfile"
	methodWithdrawFunds        = "withdrawFunds"
	methodCastVote             = "castVote"
	methodGetCampaignInfo      = "getCampaignInfo"
	methodGetCampaignTarget    = "getCampaignTarget"
	methodGetCampaignTotals    = "getCampaignTotals"
	methodGetDonationInfo      = "getDonationInfo"
	methodGetDonationDetails   = "getDonationDetails"
	methodGetDonorProfile      = "getDonorProfile"
	methodGetDonorStats        = "getDonorStats"
	methodGetCampaignDonations = "getCampaignDonations"
	methodGetDonorCampaigns    = "getDonorCampaigns"
	methodGetCampaignReports   = "getCampaignReports"
	methodGetImpactReport      = "getImpactReport"
	methodGetVoteStats         = "getVoteStats"
	methodHasVoted             = "hasVoted"
	methodGetEncryptionKey     = "getEncryptionKey"

	EventCampaignCreated = "CampaignCreated"
	EventDonationMade    = "DonationMade"
	EventImpactReported  = "ImpactReported"
	EventVoteCast        = "VoteCast"
)

// ContractABI is the interface of the Fund Shadow contract. Sealed values
// are passed as a ciphertext and proof pair, except for impact reports where
// each figure is a single bytes value holding the ciphertext followed by its
// proof.
const ContractABI = `[
  {"type":"function","name":"createCampaign","stateMutability":"nonpayable",
   "inputs":[
     {"name":"_name","type":"string"},
     {"name":"_description","type":"string"},
     {"name":"_targetAmount","type":"bytes"},
     {"name":"_targetAmountProof","type":"bytes"},
     {"name":"_duration","type":"uint256"},
     {"name":"_category","type":"string"},
     {"name":"_imageHash","type":"string"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"makeDonation","stateMutability":"payable",
   "inputs":[
     {"name":"campaignId","type":"uint256"},
     {"name":"amount","type":"bytes"},
     {"name":"_amountProof","type":"bytes"},
     {"name":"message","type":"string"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"submitImpactReport","stateMutability":"nonpayable",
   "inputs":[
     {"name":"campaignId","type":"uint256"},
     {"name":"beneficiariesReached","type":"bytes"},
     {"name":"fundsUtilized","type":"bytes"},
     {"name":"reportHash","type":"string"},
     {"name":"description","type":"string"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"updateDonorProfile","stateMutability":"nonpayable",
   "inputs":[
     {"name":"name","type":"string"},
     {"name":"bio","type":"string"},
     {"name":"isVerified","type":"bool"}],
   "outputs":[]},
  {"type":"function","name":"withdrawFunds","stateMutability":"nonpayable",
   "inputs":[{"name":"campaignId","type":"uint256"}],
   "outputs":[]},
  {"type":"function","name":"castVote","stateMutability":"nonpayable",
   "inputs":[
     {"name":"campaignId","type":"uint256"},
     {"name":"choice","type":"bytes"},
     {"name":"choiceProof","type":"bytes"}],
   "outputs":[]},
  {"type":"function","name":"getCampaignInfo","stateMutability":"view",
   "inputs":[{"name":"campaignId","type":"uint256"}],
   "outputs":[
     {"name":"name","type":"string"},
     {"name":"description","type":"string"},
     {"name":"category","type":"string"},
     {"name":"imageHash","type":"string"},
     {"name":"isActive","type":"bool"},
     {"name":"isVerified","type":"bool"},
     {"name":"organizer","type":"address"},
     {"name":"startTime","type":"uint256"},
     {"name":"endTime","type":"uint256"}]},
  {"type":"function","name":"getCampaignTarget","stateMutability":"view",
   "inputs":[{"name":"campaignId","type":"uint256"}],
   "outputs":[
     {"name":"targetAmount","type":"bytes"},
     {"name":"targetAmountProof","type":"bytes"}]},
  {"type":"function","name":"getCampaignTotals","stateMutability":"view",
   "inputs":[{"name":"campaignId","type":"uint256"}],
   "outputs":[
     {"name":"currentAmount","type":"uint256"},
     {"name":"donorCount","type":"uint256"},
     {"name":"isFunded","type":"bool"}]},
  {"type":"function","name":"getDonationInfo","stateMutability":"view",
   "inputs":[{"name":"donationId","type":"uint256"}],
   "outputs":[
     {"name":"donor","type":"address"},
     {"name":"timestamp","type":"uint256"},
     {"name":"message","type":"string"}]},
  {"type":"function","name":"getDonationDetails","stateMutability":"view",
   "inputs":[{"name":"donationId","type":"uint256"}],
   "outputs":[
     {"name":"campaignId","type":"uint256"},
     {"name":"amount","type":"bytes"},
     {"name":"amountProof","type":"bytes"}]},
  {"type":"function","name":"getDonorProfile","stateMutability":"view",
   "inputs":[{"name":"donor","type":"address"}],
   "outputs":[
     {"name":"name","type":"string"},
     {"name":"bio","type":"string"},
     {"name":"isVerified","type":"bool"}]},
  {"type":"function","name":"getDonorStats","stateMutability":"view",
   "inputs":[{"name":"donor","type":"address"}],
   "outputs":[
     {"name":"totalDonated","type":"uint256"},
     {"name":"donationCount","type":"uint256"},
     {"name":"reputationScore","type":"uint256"}]},
  {"type":"function","name":"getCampaignDonations","stateMutability":"view",
   "inputs":[{"name":"campaignId","type":"uint256"}],
   "outputs":[{"name":"","type":"uint256[]"}]},
  {"type":"function","name":"getDonorCampaigns","stateMutability":"view",
   "inputs":[{"name":"donor","type":"address"}],
   "outputs":[{"name":"","type":"uint256[]"}]},
  {"type":"function","name":"getCampaignReports","stateMutability":"view",
   "inputs":[{"name":"campaignId","type":"uint256"}],
   "outputs":[{"name":"","type":"uint256[]"}]},
  {"type":"function","name":"getImpactReport","stateMutability":"view",
   "inputs":[{"name":"reportId","type":"uint256"}],
   "outputs":[
     {"name":"campaignId","type":"uint256"},
     {"name":"reporter","type":"address"},
     {"name":"reportHash","type":"string"},
     {"name":"description","type":"string"},
     {"name":"timestamp","type":"uint256"},
     {"name":"beneficiariesReached","type":"bytes"},
     {"name":"fundsUtilized","type":"bytes"}]},
  {"type":"function","name":"getVoteStats","stateMutability":"view",
   "inputs":[{"name":"campaignId","type":"uint256"}],
   "outputs":[
     {"name":"currentVotes","type":"uint256"},
     {"name":"totalVoters","type":"uint256"}]},
  {"type":"function","name":"hasVoted","stateMutability":"view",
   "inputs":[
     {"name":"campaignId","type":"uint256"},
     {"name":"voter","type":"address"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"getEncryptionKey","stateMutability":"view",
   "inputs":[],
   "outputs":[{"name":"","type":"bytes"}]},
  {"type":"event","name":"CampaignCreated","anonymous":false,
   "inputs":[
     {"indexed":true,"name":"campaignId","type":"uint256"},
     {"indexed":true,"name":"organizer","type":"address"},
     {"indexed":false,"name":"name","type":"string"}]},
  {"type":"event","name":"DonationMade","anonymous":false,
   "inputs":[
     {"indexed":true,"name":"donationId","type":"uint256"},
     {"indexed":true,"name":"campaignId","type":"uint256"},
     {"indexed":true,"name":"donor","type":"address"}]},
  {"type":"event","name":"ImpactReported","anonymous":false,
   "inputs":[
     {"indexed":true,"name":"reportId","type":"uint256"},
     {"indexed":true,"name":"campaignId","type":"uint256"},
     {"indexed":true,"name":"reporter","type":"address"}]},
  {"type":"event","name":"VoteCast","anonymous":false,
   "inputs":[{"indexed":true,"name":"campaignId","type":"uint256"}]}
]`

var parsedABI = mustParseABI(ContractABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// ABI returns the parsed contract interface.
func ABI() abi.ABI {
	return parsedABI
}
